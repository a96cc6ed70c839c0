package team_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/p-n-ai/stream-course/internal/platform/database/dbtest"
	"github.com/p-n-ai/stream-course/internal/team"
)

func validAccount() team.Account {
	return team.Account{
		School:         team.School{Name: "SK Taman Melati"},
		SchoolLocation: "Kuala Lumpur",
		ClassLevel:     "6",
		TeamName:       "Rocketeers",
		Students:       []string{"Aisyah", "Ben", "Chen"},
	}
}

func TestAccount_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*team.Account)
		fields []string
	}{
		{"valid", func(*team.Account) {}, nil},
		{"blank school", func(a *team.Account) { a.School.Name = "  " }, []string{"school.name"}},
		{"missing location", func(a *team.Account) { a.SchoolLocation = "" }, []string{"schoolLocation"}},
		{"class out of range", func(a *team.Account) { a.ClassLevel = "4" }, []string{"class"}},
		{"missing team name", func(a *team.Account) { a.TeamName = "" }, []string{"teamName"}},
		{"no students", func(a *team.Account) { a.Students = nil }, []string{"students"}},
		{"blank student", func(a *team.Account) { a.Students[1] = " " }, []string{"students[1]"}},
		{"several", func(a *team.Account) {
			a.TeamName = ""
			a.ClassLevel = "11"
		}, []string{"class", "teamName"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := validAccount()
			tt.mutate(&acc)
			err := acc.Validate()
			if tt.fields == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			var verr *team.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			var got []string
			for _, f := range verr.Fields {
				got = append(got, f.Field)
			}
			if !reflect.DeepEqual(got, tt.fields) {
				t.Errorf("fields = %v, want %v", got, tt.fields)
			}
		})
	}
}

func TestAccount_Normalize(t *testing.T) {
	acc := team.Account{
		School:   team.School{Name: " SK Melati "},
		TeamName: "\tRocketeers ",
		Students: []string{" Aisyah"},
	}
	acc.Normalize()
	if acc.School.Name != "SK Melati" || acc.TeamName != "Rocketeers" || acc.Students[0] != "Aisyah" {
		t.Errorf("Normalize() = %+v", acc)
	}
}

func TestMemoryStore(t *testing.T) {
	store := team.NewMemoryStore()
	ctx := t.Context()

	if _, err := store.Get(ctx, "user-1"); !errors.Is(err, team.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}

	acc := validAccount()
	if err := store.Put(ctx, "user-1", acc); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	acc.Students[0] = "changed"

	got, err := store.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != "user-1" {
		t.Errorf("ID = %q, want user-1", got.ID)
	}
	if got.Students[0] != "Aisyah" {
		t.Errorf("stored record shares memory with the caller: %v", got.Students)
	}
}

func TestPostgresStore(t *testing.T) {
	db := dbtest.New(t)
	store, err := team.NewPostgresStore(db.Pool)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	ctx := t.Context()

	if _, err := store.Get(ctx, "user-1"); !errors.Is(err, team.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}

	want := validAccount()
	if err := store.Put(ctx, "user-1", want); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, err := store.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	want.ID = "user-1"
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}
}
