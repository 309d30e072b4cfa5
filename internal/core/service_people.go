package core

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"ehscore/pkg/domain"
)

func validateEmployee(e Employee, others []Employee) error {
	switch {
	case strings.TrimSpace(e.EmployeeNumber) == "":
		return domain.ValidationError{Entity: domain.EntityEmployee, Field: "employeeNumber", Message: "required"}
	case strings.TrimSpace(e.Name) == "":
		return domain.ValidationError{Entity: domain.EntityEmployee, Field: "name", Message: "required"}
	}
	for _, o := range others {
		if o.ID != e.ID && o.EmployeeNumber == e.EmployeeNumber {
			return domain.ValidationError{Entity: domain.EntityEmployee, Field: "employeeNumber", Message: "already used by " + o.ID}
		}
	}
	return nil
}

// CreateEmployee adds an employee with a unique employee number.
func (s *Service) CreateEmployee(ctx context.Context, actorID string, e Employee) (Employee, Result, error) {
	var created Employee
	res, err := s.run(ctx, "create_employee", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageEmployees, "create employees"); err != nil {
			return "", err
		}
		all, err := listEntities[Employee](tx, domain.KeyEmployees)
		if err != nil {
			return "", err
		}
		e.ID = tx.NewID()
		if err := validateEmployee(e, all); err != nil {
			return "", err
		}
		created, err = insertEntity(tx, domain.KeyEmployees, domain.EntityEmployee, e)
		return e.ID, err
	})
	return created, res, err
}

// UpdateEmployee edits an employee.
func (s *Service) UpdateEmployee(ctx context.Context, actorID, id string, mutator func(*Employee) error) (Employee, Result, error) {
	var updated Employee
	res, err := s.run(ctx, "update_employee", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageEmployees, "update employees"); err != nil {
			return id, err
		}
		all, err := listEntities[Employee](tx, domain.KeyEmployees)
		if err != nil {
			return id, err
		}
		updated, err = updateEntity(tx, domain.KeyEmployees, domain.EntityEmployee, id, func(e *Employee) error {
			if err := mutator(e); err != nil {
				return err
			}
			return validateEmployee(*e, all)
		})
		return id, err
	})
	return updated, res, err
}

// DeleteEmployee removes an employee that no delivery, incident, inspection or
// training references.
func (s *Service) DeleteEmployee(ctx context.Context, actorID, id string) (Result, error) {
	return s.run(ctx, "delete_employee", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageEmployees, "delete employees"); err != nil {
			return id, err
		}
		if _, err := getEntity[Employee](tx, domain.KeyEmployees, domain.EntityEmployee, id); err != nil {
			return id, err
		}
		var refs employeeRefs
		var err error
		if refs.deliveries, err = listEntities[PpeDelivery](tx, domain.KeyPpeDeliveries); err != nil {
			return id, err
		}
		if refs.incidents, err = listEntities[Incident](tx, domain.KeyIncidents); err != nil {
			return id, err
		}
		if refs.inspections, err = listEntities[Inspection](tx, domain.KeyInspections); err != nil {
			return id, err
		}
		if refs.trainings, err = listEntities[Training](tx, domain.KeyTrainings); err != nil {
			return id, err
		}
		if err := guardEmployeeDelete(id, refs); err != nil {
			return id, err
		}
		_, err = deleteEntity[Employee](tx, domain.KeyEmployees, domain.EntityEmployee, id)
		return id, err
	})
}

// ListEmployees returns employees sorted by name.
func (s *Service) ListEmployees(ctx context.Context) ([]Employee, error) {
	var out []Employee
	err := s.view(ctx, "list_employees", func(tx *Transaction) error {
		var err error
		out, err = listEntities[Employee](tx, domain.KeyEmployees)
		return err
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

func validateTraining(t Training, employees []Employee) error {
	switch {
	case strings.TrimSpace(t.Topic) == "":
		return domain.ValidationError{Entity: domain.EntityTraining, Field: "topic", Message: "required"}
	case t.Date.IsZero():
		return domain.ValidationError{Entity: domain.EntityTraining, Field: "date", Message: "required"}
	case t.TrainingType != domain.TrainingInternal && t.TrainingType != domain.TrainingExternal:
		return domain.ValidationError{Entity: domain.EntityTraining, Field: "trainingType", Message: "unknown type " + string(t.TrainingType)}
	case strings.TrimSpace(t.Instructor) == "":
		return domain.ValidationError{Entity: domain.EntityTraining, Field: "instructor", Message: "required"}
	case t.DurationHours <= 0:
		return domain.ValidationError{Entity: domain.EntityTraining, Field: "durationHours", Message: "must be positive"}
	case len(t.Attendees) == 0:
		return domain.ValidationError{Entity: domain.EntityTraining, Field: "attendees", Message: "at least one attendee is required"}
	}
	seen := make(map[string]struct{}, len(t.Attendees))
	for _, id := range t.Attendees {
		if _, dup := seen[id]; dup {
			return domain.ValidationError{Entity: domain.EntityTraining, Field: "attendees", Message: "duplicate attendee " + id}
		}
		seen[id] = struct{}{}
		if !Resolve(id, employees).OK() {
			return domain.NotFoundError{Entity: domain.EntityEmployee, ID: id}
		}
	}
	return nil
}

// CreateTraining records a course session.
func (s *Service) CreateTraining(ctx context.Context, actorID string, t Training) (Training, Result, error) {
	var created Training
	res, err := s.run(ctx, "create_training", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageTrainings, "create trainings"); err != nil {
			return "", err
		}
		employees, err := listEntities[Employee](tx, domain.KeyEmployees)
		if err != nil {
			return "", err
		}
		if err := validateTraining(t, employees); err != nil {
			return "", err
		}
		t.ID = tx.NewID()
		created, err = insertEntity(tx, domain.KeyTrainings, domain.EntityTraining, t)
		return t.ID, err
	})
	return created, res, err
}

// UpdateTraining edits a training.
func (s *Service) UpdateTraining(ctx context.Context, actorID, id string, mutator func(*Training) error) (Training, Result, error) {
	var updated Training
	res, err := s.run(ctx, "update_training", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageTrainings, "update trainings"); err != nil {
			return id, err
		}
		employees, err := listEntities[Employee](tx, domain.KeyEmployees)
		if err != nil {
			return id, err
		}
		updated, err = updateEntity(tx, domain.KeyTrainings, domain.EntityTraining, id, func(t *Training) error {
			if err := mutator(t); err != nil {
				return err
			}
			return validateTraining(*t, employees)
		})
		return id, err
	})
	return updated, res, err
}

// DeleteTraining removes a training.
func (s *Service) DeleteTraining(ctx context.Context, actorID, id string) (Result, error) {
	return s.run(ctx, "delete_training", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageTrainings, "delete trainings"); err != nil {
			return id, err
		}
		_, err := deleteEntity[Training](tx, domain.KeyTrainings, domain.EntityTraining, id)
		return id, err
	})
}

// ListTrainings returns trainings by date, most recent first.
func (s *Service) ListTrainings(ctx context.Context) ([]Training, error) {
	var out []Training
	err := s.view(ctx, "list_trainings", func(tx *Transaction) error {
		var err error
		out, err = listEntities[Training](tx, domain.KeyTrainings)
		return err
	})
	newestFirst(out, func(t Training) domain.Date { return t.Date }, func(t Training) string { return t.Topic })
	return out, err
}

var violationCatalogue = func() map[domain.ViolationType]struct{} {
	set := make(map[domain.ViolationType]struct{}, len(domain.ViolationTypes))
	for _, v := range domain.ViolationTypes {
		set[v] = struct{}{}
	}
	return set
}()

// RecordInspection appends a PPE-use inspection. Inspections are never
// edited or deleted.
func (s *Service) RecordInspection(ctx context.Context, actorID string, in Inspection) (Inspection, Result, error) {
	var created Inspection
	res, err := s.run(ctx, "record_inspection", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageInspections, "record inspections"); err != nil {
			return "", err
		}
		if in.EmployeeID == "" {
			return "", domain.ValidationError{Entity: domain.EntityInspection, Field: "employeeId", Message: "required"}
		}
		if _, err := getEntity[Employee](tx, domain.KeyEmployees, domain.EntityEmployee, in.EmployeeID); err != nil {
			return "", err
		}
		if in.Violation != (len(in.Violations) > 0) {
			return "", domain.ValidationError{Entity: domain.EntityInspection, Field: "violations", Message: "must be non-empty exactly when violation is set"}
		}
		for _, v := range in.Violations {
			if _, ok := violationCatalogue[v]; !ok {
				return "", domain.ValidationError{Entity: domain.EntityInspection, Field: "violations", Message: "unknown violation " + string(v)}
			}
		}
		if in.Violations == nil {
			in.Violations = []domain.ViolationType{}
		}
		if in.Date.IsZero() {
			in.Date = tx.Today()
		}
		in.ID = tx.NewID()
		var err error
		created, err = insertEntity(tx, domain.KeyInspections, domain.EntityInspection, in)
		return in.ID, err
	})
	return created, res, err
}

// ListInspections returns inspections newest first.
func (s *Service) ListInspections(ctx context.Context) ([]Inspection, error) {
	var out []Inspection
	err := s.view(ctx, "list_inspections", func(tx *Transaction) error {
		var err error
		out, err = listEntities[Inspection](tx, domain.KeyInspections)
		return err
	})
	newestFirst(out, func(i Inspection) domain.Date { return i.Date }, func(i Inspection) string { return i.ID })
	return out, err
}

var userLevels = map[domain.UserLevel]struct{}{
	domain.LevelAdmin:      {},
	domain.LevelSupervisor: {},
	domain.LevelOperator:   {},
}

var knownPermissions = func() map[domain.Permission]struct{} {
	set := make(map[domain.Permission]struct{}, len(domain.AllPermissions))
	for _, p := range domain.AllPermissions {
		set[p] = struct{}{}
	}
	return set
}()

func validateUser(u User, others []User) error {
	switch {
	case strings.TrimSpace(u.EmployeeNumber) == "":
		return domain.ValidationError{Entity: domain.EntityUser, Field: "employeeNumber", Message: "required"}
	case strings.TrimSpace(u.FullName) == "":
		return domain.ValidationError{Entity: domain.EntityUser, Field: "fullName", Message: "required"}
	}
	if _, ok := userLevels[u.Level]; !ok {
		return domain.ValidationError{Entity: domain.EntityUser, Field: "level", Message: "unknown level " + string(u.Level)}
	}
	for _, p := range u.Permissions {
		if _, ok := knownPermissions[p]; !ok {
			return domain.ValidationError{Entity: domain.EntityUser, Field: "permissions", Message: "unknown permission " + string(p)}
		}
	}
	for _, o := range others {
		if o.ID != u.ID && o.EmployeeNumber == u.EmployeeNumber {
			return domain.ValidationError{Entity: domain.EntityUser, Field: "employeeNumber", Message: "already used by " + o.ID}
		}
	}
	return nil
}

func (s *Service) hashPassword(password string) (string, error) {
	if password == "" {
		return "", domain.ValidationError{Entity: domain.EntityUser, Field: "password", Message: "required"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", domain.ValidationError{Entity: domain.EntityUser, Field: "password", Message: err.Error()}
	}
	return string(hash), nil
}

// CreateUser adds an account. Only the bcrypt hash of password is stored.
func (s *Service) CreateUser(ctx context.Context, actorID string, u User, password string) (User, Result, error) {
	var created User
	res, err := s.run(ctx, "create_user", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageUsers, "create users"); err != nil {
			return "", err
		}
		all, err := listEntities[User](tx, domain.KeyUsers)
		if err != nil {
			return "", err
		}
		u.ID = tx.NewID()
		if err := validateUser(u, all); err != nil {
			return "", err
		}
		if u.PasswordHash, err = s.hashPassword(password); err != nil {
			return "", err
		}
		u.LegacyPassword = ""
		if u.Permissions == nil {
			u.Permissions = []domain.Permission{}
		}
		created, err = insertEntity(tx, domain.KeyUsers, domain.EntityUser, u)
		return u.ID, err
	})
	return created.Redacted(), res, err
}

// UpdateUser edits profile, level and permissions. Credentials are kept.
func (s *Service) UpdateUser(ctx context.Context, actorID, id string, mutator func(*User) error) (User, Result, error) {
	var updated User
	res, err := s.run(ctx, "update_user", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageUsers, "update users"); err != nil {
			return id, err
		}
		all, err := listEntities[User](tx, domain.KeyUsers)
		if err != nil {
			return id, err
		}
		updated, err = updateEntity(tx, domain.KeyUsers, domain.EntityUser, id, func(u *User) error {
			hash := u.PasswordHash
			if err := mutator(u); err != nil {
				return err
			}
			u.PasswordHash = hash
			u.LegacyPassword = ""
			return validateUser(*u, all)
		})
		return id, err
	})
	return updated.Redacted(), res, err
}

// SetUserPassword replaces a user's password.
func (s *Service) SetUserPassword(ctx context.Context, actorID, id, password string) (Result, error) {
	return s.run(ctx, "set_user_password", actorID, func(tx *Transaction, actor User) (string, error) {
		if actor.ID != id {
			if err := requirePermission(actor, domain.PermManageUsers, "change passwords"); err != nil {
				return id, err
			}
		}
		hash, err := s.hashPassword(password)
		if err != nil {
			return id, err
		}
		_, err = updateEntity(tx, domain.KeyUsers, domain.EntityUser, id, func(u *User) error {
			u.PasswordHash = hash
			u.LegacyPassword = ""
			return nil
		})
		return id, err
	})
}

// DeleteUser removes an account. The acting user and users still referenced
// by workflow records cannot be deleted.
func (s *Service) DeleteUser(ctx context.Context, actorID, id string) (Result, error) {
	return s.run(ctx, "delete_user", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageUsers, "delete users"); err != nil {
			return id, err
		}
		if _, err := getEntity[User](tx, domain.KeyUsers, domain.EntityUser, id); err != nil {
			return id, err
		}
		var refs userRefs
		var err error
		if refs.deliveries, err = listEntities[PpeDelivery](tx, domain.KeyPpeDeliveries); err != nil {
			return id, err
		}
		if refs.permits, err = listEntities[WorkPermit](tx, domain.KeyWorkPermits); err != nil {
			return id, err
		}
		if refs.audits, err = listEntities[Audit](tx, domain.KeyAudits); err != nil {
			return id, err
		}
		if refs.wasteLogs, err = listEntities[WasteLog](tx, domain.KeyWasteLogs); err != nil {
			return id, err
		}
		if refs.logs, err = listEntities[SafetyInspectionLog](tx, domain.KeySafetyInspectionLogs); err != nil {
			return id, err
		}
		if refs.activities, err = listEntities[Activity](tx, domain.KeyActivities); err != nil {
			return id, err
		}
		if err := guardUserDelete(id, actor, refs); err != nil {
			return id, err
		}
		_, err = deleteEntity[User](tx, domain.KeyUsers, domain.EntityUser, id)
		return id, err
	})
}

// ListUsers returns users without credential material.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	var out []User
	err := s.view(ctx, "list_users", func(tx *Transaction) error {
		all, err := listEntities[User](tx, domain.KeyUsers)
		for _, u := range all {
			out = append(out, u.Redacted())
		}
		return err
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, err
}
