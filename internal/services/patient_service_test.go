package services

import (
	"context"
	"testing"

	"github.com/eclipselink/handoff-backend/internal/models"
	"github.com/eclipselink/handoff-backend/internal/utils"
)

type fakePatientRepo struct {
	byID  map[string]*models.Patient
	byMRN map[string]bool
}

func newFakePatientRepo(ps ...*models.Patient) *fakePatientRepo {
	f := &fakePatientRepo{byID: map[string]*models.Patient{}, byMRN: map[string]bool{}}
	for _, p := range ps {
		f.byID[p.ID] = p
		f.byMRN[p.MRN] = true
	}
	return f
}

func (f *fakePatientRepo) Create(ctx context.Context, p *models.Patient) error {
	if f.byMRN[p.MRN] {
		return utils.ErrConflict
	}
	f.byID[p.ID] = p
	f.byMRN[p.MRN] = true
	return nil
}

func (f *fakePatientRepo) GetByID(ctx context.Context, id string) (*models.Patient, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return p, nil
}

func TestPatientCreate(t *testing.T) {
	svc := NewPatientService(newFakePatientRepo())

	p, err := svc.Create(context.Background(), &models.Patient{
		MRN:       "MRN-1001",
		FirstName: "Maria",
		LastName:  "Alvarez",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if p.ID == "" {
		t.Fatal("expected a generated id")
	}
	if p.CreatedAt.IsZero() || p.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be set")
	}
}

func TestPatientCreateValidation(t *testing.T) {
	svc := NewPatientService(newFakePatientRepo())

	cases := []models.Patient{
		{FirstName: "Maria", LastName: "Alvarez"},
		{MRN: "MRN-1001", LastName: "Alvarez"},
		{MRN: "MRN-1001", FirstName: "Maria"},
	}
	for _, p := range cases {
		if _, err := svc.Create(context.Background(), &p); !utils.IsCode(err, utils.CodeInvalidArgument) {
			t.Fatalf("expected invalid argument for %+v, got %v", p, err)
		}
	}
}

func TestPatientCreateDuplicateMRN(t *testing.T) {
	existing := &models.Patient{ID: "p-1", MRN: "MRN-1001", FirstName: "Maria", LastName: "Alvarez"}
	svc := NewPatientService(newFakePatientRepo(existing))

	_, err := svc.Create(context.Background(), &models.Patient{
		MRN:       "MRN-1001",
		FirstName: "Ana",
		LastName:  "Reyes",
	})
	if !utils.IsCode(err, utils.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestPatientGet(t *testing.T) {
	existing := &models.Patient{ID: "p-1", MRN: "MRN-1001", FirstName: "Maria", LastName: "Alvarez"}
	svc := NewPatientService(newFakePatientRepo(existing))

	p, err := svc.Get(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if p.MRN != "MRN-1001" {
		t.Fatalf("unexpected patient: %+v", p)
	}

	if _, err := svc.Get(context.Background(), "missing"); !utils.IsCode(err, utils.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.Get(context.Background(), ""); !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}
