package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/openimis/openimis-be-medical/internal/domain/entities"
	"github.com/openimis/openimis-be-medical/internal/domain/providers"
	"github.com/openimis/openimis-be-medical/internal/domain/repositories"
	"github.com/openimis/openimis-be-medical/internal/infrastructure/observability"
	apperrors "github.com/openimis/openimis-be-medical/pkg/errors"
)

// errDeleteAborted rolls back a delete whose failure was already recorded
var errDeleteAborted = errors.New("delete aborted")

// CatalogDeps wires a CatalogService
type CatalogDeps struct {
	Store       repositories.UnitOfWork
	Permissions entities.PermissionTable

	// Optional
	Events    providers.EventBus
	Diagnoses repositories.DiagnosisRepository
	Metrics   *observability.Metrics
	Clock     func() time.Time
}

// CatalogService orchestrates catalog mutations and listings under the
// permission table and the code uniqueness rule.
type CatalogService struct {
	uow           repositories.UnitOfWork
	perms         entities.PermissionTable
	itemEngine    *VersioningEngine[*entities.Item]
	serviceEngine *VersioningEngine[*entities.Service]
	reconciler    *Reconciler
	events        providers.EventBus
	diagnoses     repositories.DiagnosisRepository
	metrics       *observability.Metrics
	validate      *validator.Validate
	now           func() time.Time
}

// NewCatalogService creates a new catalog service
func NewCatalogService(deps CatalogDeps) *CatalogService {
	now := deps.Clock
	if now == nil {
		now = utcNow
	}
	perms := deps.Permissions
	if perms == nil {
		perms = entities.DefaultPermissionTable()
	}

	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return &CatalogService{
		uow:           deps.Store,
		perms:         perms,
		itemEngine:    NewVersioningEngine[*entities.Item](now),
		serviceEngine: NewVersioningEngine[*entities.Service](now),
		reconciler:    NewReconciler(now),
		events:        deps.Events,
		diagnoses:     deps.Diagnoses,
		metrics:       deps.Metrics,
		validate:      validate,
		now:           now,
	}
}

// CreateItem creates an item. A payload uuid naming a current item turns the
// call into an update of that item.
func (s *CatalogService) CreateItem(ctx context.Context, caller *entities.Caller, input *entities.ItemInput) (*entities.Item, error) {
	return s.saveItem(ctx, caller, input, false)
}

// UpdateItem replaces the current version of the item named by input.UUID
func (s *CatalogService) UpdateItem(ctx context.Context, caller *entities.Caller, input *entities.ItemInput) (*entities.Item, error) {
	return s.saveItem(ctx, caller, input, true)
}

func (s *CatalogService) saveItem(ctx context.Context, caller *entities.Caller, input *entities.ItemInput, isUpdate bool) (*entities.Item, error) {
	ctx, span := observability.StartSpan(ctx, "CatalogService.saveItem", attribute.Bool("catalog.update", isUpdate))
	defer span.End()

	create, update, _, _, _ := entities.OperationsFor(entities.KindItem)
	op, action := create, "create"
	if isUpdate {
		op, action = update, "update"
	}
	if err := s.authorize(caller, op); err != nil {
		return nil, err
	}
	category, err := s.checkInput(input, &input.EntryInput, isUpdate)
	if err != nil {
		return nil, err
	}

	incoming := input.ToItem(category)
	incoming.AuditUserID = caller.AuditUserID

	var (
		saved   *entities.Item
		created bool
	)
	err = s.uow.WithinTx(ctx, func(ctx context.Context, store repositories.CatalogStore) error {
		var err error
		saved, created, err = saveEntry(ctx, s.itemEngine, store.Items(), incoming, isUpdate, s.now)
		if err != nil {
			return err
		}
		return recordClientMutation(ctx, store, entities.KindItem, saved.ID, input.ClientMutationID)
	})
	if err != nil {
		observability.RecordError(span, err)
		s.mutationFailed(ctx, entities.KindItem, action, input.Code, err)
		return nil, wrapMutationError(err, action, entities.KindItem, input.Code)
	}

	s.mutationSucceeded(ctx, entities.KindItem, savedAction(created), &saved.Entry)
	return saved, nil
}

// CreateService creates a service and its child links. A payload uuid naming
// a current service turns the call into an update of that service.
func (s *CatalogService) CreateService(ctx context.Context, caller *entities.Caller, input *entities.ServiceInput) (*entities.Service, error) {
	return s.saveService(ctx, caller, input, false)
}

// UpdateService replaces the current version of the service named by
// input.UUID and reconciles the child lists the payload carries.
func (s *CatalogService) UpdateService(ctx context.Context, caller *entities.Caller, input *entities.ServiceInput) (*entities.Service, error) {
	return s.saveService(ctx, caller, input, true)
}

func (s *CatalogService) saveService(ctx context.Context, caller *entities.Caller, input *entities.ServiceInput, isUpdate bool) (*entities.Service, error) {
	ctx, span := observability.StartSpan(ctx, "CatalogService.saveService", attribute.Bool("catalog.update", isUpdate))
	defer span.End()

	create, update, _, _, _ := entities.OperationsFor(entities.KindService)
	op, action := create, "create"
	if isUpdate {
		op, action = update, "update"
	}
	if err := s.authorize(caller, op); err != nil {
		return nil, err
	}
	category, err := s.checkInput(input, &input.EntryInput, isUpdate)
	if err != nil {
		return nil, err
	}

	incoming := input.ToService(category)
	incoming.AuditUserID = caller.AuditUserID
	if incoming.PackageType == "" {
		incoming.PackageType = entities.PackageTypeSingle
	}

	var (
		saved   *entities.Service
		created bool
	)
	err = s.uow.WithinTx(ctx, func(ctx context.Context, store repositories.CatalogStore) error {
		var err error
		saved, created, err = saveEntry(ctx, s.serviceEngine, store.Services(), incoming, isUpdate, s.now)
		if err != nil {
			return err
		}
		if err := s.reconciler.Reconcile(ctx, store, saved, input.ItemLinks(), input.ServiceLinks(), caller.AuditUserID); err != nil {
			return err
		}
		if err := recordClientMutation(ctx, store, entities.KindService, saved.ID, input.ClientMutationID); err != nil {
			return err
		}
		return attachChildren(ctx, store, []*entities.Service{saved})
	})
	if err != nil {
		observability.RecordError(span, err)
		s.mutationFailed(ctx, entities.KindService, action, input.Code, err)
		return nil, wrapMutationError(err, action, entities.KindService, input.Code)
	}

	s.mutationSucceeded(ctx, entities.KindService, savedAction(created), &saved.Entry)
	return saved, nil
}

// DeleteItems soft-deletes each item of the batch in its own transaction
func (s *CatalogService) DeleteItems(ctx context.Context, caller *entities.Caller, uuids []string) (entities.DeleteResult, error) {
	return deleteEntries(ctx, s, caller, entities.KindItem, uuids, s.itemEngine,
		func(store repositories.CatalogStore) repositories.EntryRepository[*entities.Item] {
			return store.Items()
		},
		func(store repositories.CatalogStore) Cascade {
			return store.Pricelists().CloseItemDetails
		},
	)
}

// DeleteServices soft-deletes each service of the batch in its own
// transaction, closing its pricelist rows and child links.
func (s *CatalogService) DeleteServices(ctx context.Context, caller *entities.Caller, uuids []string) (entities.DeleteResult, error) {
	return deleteEntries(ctx, s, caller, entities.KindService, uuids, s.serviceEngine,
		func(store repositories.CatalogStore) repositories.EntryRepository[*entities.Service] {
			return store.Services()
		},
		func(store repositories.CatalogStore) Cascade {
			return func(ctx context.Context, id int64, at time.Time) error {
				if err := store.Pricelists().CloseServiceDetails(ctx, id, at); err != nil {
					return err
				}
				if err := store.ServiceItems().CloseByParent(ctx, id, at); err != nil {
					return err
				}
				return store.ServiceServices().CloseByParent(ctx, id, at)
			}
		},
	)
}

// ListItems lists items matching filter
func (s *CatalogService) ListItems(ctx context.Context, caller *entities.Caller, filter entities.CatalogFilter) (*entities.CatalogPage[*entities.Item], error) {
	entries, total, err := listEntries(ctx, s, caller, entities.KindItem, filter, s.uow.Store().Items())
	if err != nil {
		return nil, err
	}
	return &entities.CatalogPage[*entities.Item]{Entries: entries, TotalCount: total}, nil
}

// ListServices lists services matching filter, with their current child
// links when filter.WithChildren is set.
func (s *CatalogService) ListServices(ctx context.Context, caller *entities.Caller, filter entities.CatalogFilter) (*entities.CatalogPage[*entities.Service], error) {
	store := s.uow.Store()
	entries, total, err := listEntries(ctx, s, caller, entities.KindService, filter, store.Services())
	if err != nil {
		return nil, err
	}
	if filter.WithChildren {
		if err := attachChildren(ctx, store, entries); err != nil {
			return nil, err
		}
	}
	return &entities.CatalogPage[*entities.Service]{Entries: entries, TotalCount: total}, nil
}

// GetItem returns the current item with uuid
func (s *CatalogService) GetItem(ctx context.Context, caller *entities.Caller, id string) (*entities.Item, error) {
	if !caller.IsAuthenticated() {
		return nil, apperrors.NewPermissionDeniedError("unauthorized")
	}
	return s.uow.Store().Items().FindCurrent(ctx, id)
}

// GetService returns the current service with uuid and its child links
func (s *CatalogService) GetService(ctx context.Context, caller *entities.Caller, id string) (*entities.Service, error) {
	if !caller.IsAuthenticated() {
		return nil, apperrors.NewPermissionDeniedError("unauthorized")
	}
	store := s.uow.Store()
	service, err := store.Services().FindCurrent(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := attachChildren(ctx, store, []*entities.Service{service}); err != nil {
		return nil, err
	}
	return service, nil
}

// ValidateItemCode reports whether no current item uses code
func (s *CatalogService) ValidateItemCode(ctx context.Context, caller *entities.Caller, code string) (bool, error) {
	return validateCode(ctx, s, caller, entities.KindItem, code, s.uow.Store().Items())
}

// ValidateServiceCode reports whether no current service uses code
func (s *CatalogService) ValidateServiceCode(ctx context.Context, caller *entities.Caller, code string) (bool, error) {
	return validateCode(ctx, s, caller, entities.KindService, code, s.uow.Store().Services())
}

// ListDiagnoses lists the ICD codes valid at date (now when nil) whose code
// or name contains search.
func (s *CatalogService) ListDiagnoses(ctx context.Context, caller *entities.Caller, search string, date *time.Time) ([]*entities.Diagnosis, error) {
	if !s.perms.Allows(caller, entities.OpQueryDiagnoses) {
		return nil, apperrors.NewPermissionDeniedError("unauthorized")
	}
	return s.diagnosisRepo().List(ctx, entities.DiagnosisFilter{Search: search, AsOf: date})
}

// GetDiagnosis returns the current diagnosis with code
func (s *CatalogService) GetDiagnosis(ctx context.Context, caller *entities.Caller, code string) (*entities.Diagnosis, error) {
	if !s.perms.Allows(caller, entities.OpQueryDiagnoses) {
		return nil, apperrors.NewPermissionDeniedError("unauthorized")
	}
	return s.diagnosisRepo().GetByCode(ctx, code)
}

func (s *CatalogService) diagnosisRepo() repositories.DiagnosisRepository {
	if s.diagnoses != nil {
		return s.diagnoses
	}
	return s.uow.Store().Diagnoses()
}

func (s *CatalogService) authorize(caller *entities.Caller, op entities.Operation) error {
	if !caller.IsAuthenticated() {
		return apperrors.NewAuthenticationRequiredError("authentication required")
	}
	if !s.perms.Allows(caller, op) {
		return apperrors.NewPermissionDeniedError("unauthorized")
	}
	return nil
}

// checkInput validates a payload and resolves its patient category
func (s *CatalogService) checkInput(input interface{}, entry *entities.EntryInput, isUpdate bool) (entities.PatientCategory, error) {
	if isUpdate && entry.UUID == "" {
		return 0, apperrors.NewValidationError("uuid is required")
	}
	if err := s.validate.Struct(input); err != nil {
		return 0, validationError(err)
	}
	if entry.Price == nil {
		return 0, apperrors.NewValidationError("price: required")
	}
	if entry.Price.IsNegative() {
		return 0, apperrors.NewValidationError("price: must not be negative")
	}
	category, err := entry.ResolvePatientCategory()
	if errors.Is(err, entities.ErrPatientCategoryMissing) {
		return 0, apperrors.NewValidationError("patient category missing")
	}
	if err != nil {
		return 0, apperrors.NewValidationError(err.Error())
	}
	return category, nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationError(err.Error())
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
	}
	return apperrors.NewValidationError(strings.Join(msgs, "; "))
}

func (s *CatalogService) mutationSucceeded(ctx context.Context, kind entities.EntryKind, action entities.CatalogAction, entry *entities.Entry) {
	observability.RecordMutation(ctx, s.metrics, string(kind), string(action), "ok")
	observability.LoggerFromContext(ctx).Info().
		Str("kind", string(kind)).
		Str("action", string(action)).
		Str("uuid", entry.UUID).
		Str("code", entry.Code).
		Int("version", entry.Version).
		Msg("catalog entry saved")

	if s.events == nil {
		return
	}
	event := &entities.CatalogEvent{
		ID:        uuid.NewString(),
		Kind:      kind,
		Action:    action,
		UUID:      entry.UUID,
		Code:      entry.Code,
		Version:   entry.Version,
		Timestamp: s.now(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		observability.LoggerFromContext(ctx).Error().
			Err(err).
			Str("kind", string(kind)).
			Str("uuid", entry.UUID).
			Msg("failed to publish catalog event")
	}
}

func (s *CatalogService) mutationFailed(ctx context.Context, kind entities.EntryKind, action, code string, err error) {
	observability.RecordMutation(ctx, s.metrics, string(kind), action, string(apperrors.TypeOf(err)))
	observability.LoggerFromContext(ctx).Warn().
		Err(err).
		Str("kind", string(kind)).
		Str("action", action).
		Str("code", code).
		Msg("catalog mutation failed")
}

func savedAction(created bool) entities.CatalogAction {
	if created {
		return entities.CatalogActionCreated
	}
	return entities.CatalogActionUpdated
}

// wrapMutationError keeps the taxonomy errors as they are and turns
// anything else into a failure naming the entry code.
func wrapMutationError(err error, action string, kind entities.EntryKind, code string) error {
	if appErr, ok := apperrors.As(err); ok && appErr.Type != apperrors.ErrorTypePersistence {
		return err
	}
	return apperrors.NewPersistenceError(fmt.Sprintf("Failed to %s %s %s", action, kind, code), err)
}

func codeExistsMessage(kind entities.EntryKind, code string) string {
	if kind == entities.KindService {
		return fmt.Sprintf("Services code %s already exists", code)
	}
	return fmt.Sprintf("Items code %s already exists", code)
}

func idNotFoundMessage(kind entities.EntryKind, id string) string {
	if kind == entities.KindService {
		return fmt.Sprintf("Service id %s does not exist", id)
	}
	return fmt.Sprintf("Item id %s does not exist", id)
}

// saveEntry creates incoming or, when its uuid names a current row, archives
// that row and replaces it. The bool reports a creation.
func saveEntry[T Versioned[T]](
	ctx context.Context,
	engine *VersioningEngine[T],
	repo repositories.EntryRepository[T],
	incoming T,
	mustExist bool,
	now func() time.Time,
) (T, bool, error) {
	var zero T
	in := incoming.Base()
	kind := incoming.Kind()

	var current T
	exists := false
	if in.UUID != "" {
		found, err := repo.FindCurrent(ctx, in.UUID)
		switch {
		case err == nil:
			current, exists = found, true
		case !apperrors.IsNotFound(err):
			return zero, false, err
		}
	}
	if mustExist && !exists {
		return zero, false, apperrors.NewNotFoundError(idNotFoundMessage(kind, in.UUID))
	}

	if !exists || current.Base().Code != in.Code {
		_, err := repo.FindByCode(ctx, in.Code, true)
		if err == nil {
			return zero, false, apperrors.NewCodeAlreadyExistsError(codeExistsMessage(kind, in.Code))
		}
		if !apperrors.IsNotFound(err) {
			return zero, false, err
		}
	}

	if exists {
		saved, err := engine.ArchiveAndReplace(ctx, repo, current, incoming)
		return saved, false, err
	}

	in.ID = 0
	in.Version = 1
	in.ValidityFrom = now()
	in.ValidityTo = nil
	if err := repo.Create(ctx, incoming); err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeCodeAlreadyExists) {
			return zero, false, apperrors.NewCodeAlreadyExistsError(codeExistsMessage(kind, in.Code))
		}
		return zero, false, err
	}
	return incoming, true, nil
}

func deleteEntries[T Versioned[T]](
	ctx context.Context,
	s *CatalogService,
	caller *entities.Caller,
	kind entities.EntryKind,
	uuids []string,
	engine *VersioningEngine[T],
	repoOf func(repositories.CatalogStore) repositories.EntryRepository[T],
	cascadeOf func(repositories.CatalogStore) Cascade,
) (entities.DeleteResult, error) {
	ctx, span := observability.StartSpan(ctx, "CatalogService.delete",
		attribute.String("catalog.kind", string(kind)), attribute.Int("catalog.batch", len(uuids)))
	defer span.End()

	_, _, del, _, _ := entities.OperationsFor(kind)
	if !s.perms.Allows(caller, del) {
		return entities.DeleteResult{}, apperrors.NewPermissionDeniedError("unauthorized")
	}

	var result entities.DeleteResult
	for _, id := range uuids {
		var (
			failure *entities.MutationError
			deleted T
		)
		err := s.uow.WithinTx(ctx, func(ctx context.Context, store repositories.CatalogStore) error {
			repo := repoOf(store)
			entry, err := repo.FindCurrent(ctx, id)
			if apperrors.IsNotFound(err) {
				failure = &entities.MutationError{
					Title: id,
					List:  []entities.ErrorDetail{{Message: idNotFoundMessage(kind, id)}},
				}
				return errDeleteAborted
			}
			if err != nil {
				return err
			}
			if caller != nil {
				entry.Base().AuditUserID = caller.AuditUserID
			}
			if failure = engine.SoftDelete(ctx, repo, entry, cascadeOf(store)); failure != nil {
				return errDeleteAborted
			}
			deleted = entry
			return nil
		})
		if failure == nil && err != nil {
			failure = &entities.MutationError{
				Title: id,
				List: []entities.ErrorDetail{{
					Message: fmt.Sprintf("Failed to delete %s %s", kind, id),
					Detail:  id,
				}},
			}
		}
		if failure != nil {
			s.mutationFailed(ctx, kind, "delete", id, errors.New(failure.List[0].Message))
			result.Errors = append(result.Errors, *failure)
			continue
		}
		s.mutationSucceeded(ctx, kind, entities.CatalogActionDeleted, deleted.Base())
	}
	return result, nil
}

func listEntries[T entities.CatalogEntry](
	ctx context.Context,
	s *CatalogService,
	caller *entities.Caller,
	kind entities.EntryKind,
	filter entities.CatalogFilter,
	repo repositories.EntryRepository[T],
) ([]T, int, error) {
	if !caller.IsAuthenticated() {
		return nil, 0, apperrors.NewPermissionDeniedError("unauthorized")
	}
	_, _, _, _, full := entities.OperationsFor(kind)
	if filter.ShowHistory && !s.perms.Allows(caller, full) {
		filter.ShowHistory = false
	}
	return repo.List(ctx, filter)
}

func validateCode[T entities.CatalogEntry](
	ctx context.Context,
	s *CatalogService,
	caller *entities.Caller,
	kind entities.EntryKind,
	code string,
	repo repositories.EntryRepository[T],
) (bool, error) {
	_, _, _, query, _ := entities.OperationsFor(kind)
	if !s.perms.Allows(caller, query) {
		return false, apperrors.NewPermissionDeniedError("unauthorized")
	}
	_, err := repo.FindByCode(ctx, code, true)
	if err == nil {
		return false, nil
	}
	if apperrors.IsNotFound(err) {
		return true, nil
	}
	return false, err
}

func recordClientMutation(ctx context.Context, store repositories.CatalogStore, kind entities.EntryKind, entryID int64, clientMutationID string) error {
	if clientMutationID == "" {
		return nil
	}
	return store.MutationLog().Record(ctx, kind, entryID, clientMutationID)
}

// attachChildren loads the current child links of services in two batched
// queries.
func attachChildren(ctx context.Context, store repositories.CatalogStore, services []*entities.Service) error {
	if len(services) == 0 {
		return nil
	}
	ids := make([]int64, len(services))
	for i, svc := range services {
		ids[i] = svc.ID
	}

	items, err := store.ServiceItems().ListByParents(ctx, ids)
	if err != nil {
		return err
	}
	subServices, err := store.ServiceServices().ListByParents(ctx, ids)
	if err != nil {
		return err
	}
	for _, svc := range services {
		svc.Items = items[svc.ID]
		svc.Services = subServices[svc.ID]
	}
	return nil
}
