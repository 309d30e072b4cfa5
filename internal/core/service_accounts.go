package core

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"ehscore/pkg/domain"
)

// ErrInvalidCredentials is returned by Authenticate for an unknown login or a
// wrong password.
var ErrInvalidCredentials = errors.New("invalid employee number or password")

// CurrentSchemaVersion is the snapshot layout written by this build.
const CurrentSchemaVersion = 2

// Startup reports what Open did to the store.
type Startup struct {
	SchemaVersion int
	Admin         User
	AdminCreated  bool
}

// Open prepares a store for use: an older snapshot is migrated and persisted,
// then the default administrator is created when no users exist. Callers run
// it once after NewService.
func (s *Service) Open(ctx context.Context) (Startup, error) {
	version, err := s.Migrate(ctx)
	if err != nil {
		return Startup{}, fmt.Errorf("migrate: %w", err)
	}
	admin, created, err := s.Bootstrap(ctx)
	if err != nil {
		return Startup{SchemaVersion: version}, fmt.Errorf("bootstrap: %w", err)
	}
	if created {
		s.logger.Warn("default administrator created", "user", admin.ID, "login", admin.EmployeeNumber)
	}
	return Startup{SchemaVersion: version, Admin: admin, AdminCreated: created}, nil
}

// Bootstrap creates the default administrator when no users exist. It
// reports whether an account was created.
func (s *Service) Bootstrap(ctx context.Context) (User, bool, error) {
	var (
		admin   User
		created bool
	)
	_, err := s.run(ctx, "bootstrap", systemActor, func(tx *Transaction, _ User) (string, error) {
		users, err := listEntities[User](tx, domain.KeyUsers)
		if err != nil {
			return "", err
		}
		if len(users) > 0 {
			return "", nil
		}
		hash, err := s.hashPassword(domain.DefaultAdminPassword)
		if err != nil {
			return "", err
		}
		admin = User{
			Base:           domain.Base{ID: domain.DefaultAdminID},
			EmployeeNumber: domain.DefaultAdminLogin,
			PasswordHash:   hash,
			FullName:       domain.DefaultAdminName,
			Level:          domain.LevelAdmin,
			Permissions:    append([]domain.Permission(nil), domain.AllPermissions...),
		}
		if _, err := insertEntity(tx, domain.KeyUsers, domain.EntityUser, admin); err != nil {
			return admin.ID, err
		}
		created = true
		return admin.ID, nil
	})
	return admin.Redacted(), created, err
}

// Authenticate checks a login against the stored bcrypt hash.
func (s *Service) Authenticate(ctx context.Context, employeeNumber, password string) (User, error) {
	var found User
	err := s.view(ctx, "authenticate", func(tx *Transaction) error {
		users, err := listEntities[User](tx, domain.KeyUsers)
		if err != nil {
			return err
		}
		for _, u := range users {
			if u.EmployeeNumber == employeeNumber {
				found = u
				return nil
			}
		}
		return ErrInvalidCredentials
	})
	if err != nil {
		return User{}, err
	}
	if found.PasswordHash == "" {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(found.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return found.Redacted(), nil
}

// SchemaVersion returns the stored snapshot version; 0 means never migrated.
func (s *Service) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.view(ctx, "schema_version", func(tx *Transaction) error {
		meta, err := document(tx, domain.KeySchemaMeta, func() domain.SchemaMeta { return domain.SchemaMeta{} })
		if err != nil {
			return err
		}
		version = meta.Version
		return nil
	})
	return version, err
}

type migration struct {
	version int
	name    string
	apply   func(s *Service, tx *Transaction) error
}

var migrations = []migration{
	{version: 1, name: "normalize empty lists", apply: normalizeLists},
	{version: 2, name: "hash legacy passwords", apply: hashLegacyPasswords},
}

// Migrate upgrades stored collections to CurrentSchemaVersion in one
// transaction and returns the resulting version.
func (s *Service) Migrate(ctx context.Context) (int, error) {
	version := 0
	_, err := s.run(ctx, "migrate", systemActor, func(tx *Transaction, _ User) (string, error) {
		meta, err := document(tx, domain.KeySchemaMeta, func() domain.SchemaMeta { return domain.SchemaMeta{} })
		if err != nil {
			return "", err
		}
		version = meta.Version
		for _, m := range migrations {
			if m.version <= meta.Version {
				continue
			}
			if err := m.apply(s, tx); err != nil {
				return domain.KeySchemaMeta, err
			}
			s.logger.Info("schema migration applied", "version", m.version, "name", m.name)
			version = m.version
		}
		if version != meta.Version {
			meta.Version = version
			tx.touch(domain.KeySchemaMeta)
		}
		return domain.KeySchemaMeta, nil
	})
	return version, err
}

func normalizeSlices[T any](tx *Transaction, key string, fix func(*T) bool) error {
	items, err := collection[T](tx, key)
	if err != nil {
		return err
	}
	changed := false
	for i := range *items {
		if fix(&(*items)[i]) {
			changed = true
		}
	}
	if changed {
		tx.touch(key)
	}
	return nil
}

func normalizeLists(_ *Service, tx *Transaction) error {
	steps := []error{
		normalizeSlices(tx, domain.KeyTrainings, func(t *Training) bool {
			if t.Attendees != nil {
				return false
			}
			t.Attendees = []string{}
			return true
		}),
		normalizeSlices(tx, domain.KeyInspections, func(in *Inspection) bool {
			if in.Violations != nil {
				return false
			}
			in.Violations = []domain.ViolationType{}
			return true
		}),
		normalizeSlices(tx, domain.KeyChemicals, func(c *Chemical) bool {
			if c.Pictograms != nil {
				return false
			}
			c.Pictograms = []domain.PictogramKey{}
			return true
		}),
		normalizeSlices(tx, domain.KeyWorkPermits, func(p *WorkPermit) bool {
			changed := false
			if p.Equipment == nil {
				p.Equipment, changed = []string{}, true
			}
			if p.Ppe == nil {
				p.Ppe, changed = []string{}, true
			}
			return changed
		}),
		normalizeSlices(tx, domain.KeyAudits, func(a *Audit) bool {
			changed := false
			if a.Findings == nil {
				a.Findings, changed = []AuditFinding{}, true
			}
			if a.AuditorIDs == nil {
				a.AuditorIDs, changed = []string{}, true
			}
			return changed
		}),
		normalizeSlices(tx, domain.KeyJhas, func(j *Jha) bool {
			changed := false
			if j.Steps == nil {
				j.Steps, changed = []domain.JhaStep{}, true
			}
			for i := range j.Steps {
				if j.Steps[i].Hazards == nil {
					j.Steps[i].Hazards, changed = []domain.JhaHazard{}, true
				}
			}
			return changed
		}),
		normalizeSlices(tx, domain.KeyUsers, func(u *User) bool {
			if u.Permissions != nil {
				return false
			}
			u.Permissions = []domain.Permission{}
			return true
		}),
	}
	return errors.Join(steps...)
}

func hashLegacyPasswords(s *Service, tx *Transaction) error {
	users, err := collection[User](tx, domain.KeyUsers)
	if err != nil {
		return err
	}
	for i := range *users {
		u := &(*users)[i]
		if u.LegacyPassword == "" {
			continue
		}
		before := *u
		if u.PasswordHash == "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(u.LegacyPassword), s.bcryptCost)
			if err != nil {
				return domain.PersistenceError{Key: domain.KeyUsers, Op: "migrate", Err: err}
			}
			u.PasswordHash = string(hash)
		}
		u.LegacyPassword = ""
		tx.touch(domain.KeyUsers)
		tx.recordChange(domain.EntityUser, ActionUpdate, u.ID, before.Redacted(), u.Redacted())
	}
	return nil
}
