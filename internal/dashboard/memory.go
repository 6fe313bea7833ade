package dashboard

import (
	"context"
	"strconv"
	"strings"
	"sync"
)

// Memory is an in-process API used when no dashboard URL is configured.
type Memory struct {
	mu sync.Mutex

	seq          int
	Pets         []Pet
	Logs         []HealthLog
	Appointments []Appointment
	Medications  []Medication
	Records      []HealthRecord
	Milestones   []Milestone
	Expenses     []Expense
}

func NewMemory(pets ...Pet) *Memory {
	return &Memory{Pets: pets}
}

func (m *Memory) nextID(prefix string) string {
	m.seq++
	return prefix + "-" + strconv.Itoa(m.seq)
}

func (m *Memory) ListPets(context.Context) ([]Pet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Pet(nil), m.Pets...), nil
}

func (m *Memory) FindPet(_ context.Context, name string) (*Pet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.Pets {
		if strings.EqualFold(p.Name, name) {
			cp := p
			return &cp, nil
		}
	}
	return nil, ErrNoPet
}

func (m *Memory) CreateHealthLog(_ context.Context, l HealthLog) (*HealthLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = m.nextID("log")
	m.Logs = append(m.Logs, l)
	return &l, nil
}

func (m *Memory) ListHealthLogs(_ context.Context, petID, logType string) ([]HealthLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []HealthLog
	for _, l := range m.Logs {
		if (petID == "" || l.PetID == petID) && (logType == "" || l.Type == logType) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *Memory) ListAppointments(_ context.Context, petID string) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.Appointments {
		if petID == "" || a.PetID == petID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *Memory) CreateAppointment(_ context.Context, a Appointment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = m.nextID("appt")
	m.Appointments = append(m.Appointments, a)
	return &a, nil
}

func (m *Memory) ListMedications(_ context.Context, petID string) ([]Medication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Medication
	for _, x := range m.Medications {
		if petID == "" || x.PetID == petID {
			out = append(out, x)
		}
	}
	return out, nil
}

func (m *Memory) ListHealthRecords(_ context.Context, petID string) ([]HealthRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []HealthRecord
	for _, x := range m.Records {
		if petID == "" || x.PetID == petID {
			out = append(out, x)
		}
	}
	return out, nil
}

func (m *Memory) ListMilestones(_ context.Context, petID string) ([]Milestone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Milestone
	for _, x := range m.Milestones {
		if petID == "" || x.PetID == petID {
			out = append(out, x)
		}
	}
	return out, nil
}

func (m *Memory) CreateExpense(_ context.Context, e Expense) (*Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = m.nextID("exp")
	m.Expenses = append(m.Expenses, e)
	return &e, nil
}
