package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/example/bloc-scheduler/internal/bloc"
	"github.com/example/bloc-scheduler/internal/expansion"
	"github.com/example/bloc-scheduler/internal/rules"
	"github.com/example/bloc-scheduler/internal/validation"
)

// PlanningStore captures the persistence interactions needed by the service.
type PlanningStore interface {
	GetDayPlanning(ctx context.Context, date bloc.Date, siteID string) (bloc.DayPlanning, error)
	SaveDayPlanning(ctx context.Context, planning bloc.DayPlanning) (bloc.DayPlanning, error)
	DeleteDayPlanning(ctx context.Context, date bloc.Date, siteID string) error
}

// ConfigSource loads the read-only configuration the validator needs.
type ConfigSource interface {
	ListRooms(ctx context.Context) ([]bloc.Room, error)
	ListSectors(ctx context.Context) ([]bloc.Sector, error)
	ListStaff(ctx context.Context) ([]bloc.StaffProfile, error)
	ListSupervisionRules(ctx context.Context) ([]rules.SupervisionRule, error)
}

// AbsenceSource supplies approved absences for validation.
type AbsenceSource interface {
	ListApprovedAbsences(ctx context.Context, userIDs, surgeonIDs []string, window bloc.DateRange) ([]bloc.Absence, error)
}

// GenerateParams describes one template-driven generation request.
type GenerateParams struct {
	TemplateIDs []string
	Range       bloc.DateRange
	SiteID      string
}

// GeneratedPlanning pairs a persisted planning with its informational
// validation result.
type GeneratedPlanning struct {
	Planning   bloc.DayPlanning
	Validation validation.Result
}

// PlanningService sequences expander, validator, and store. It is stateless
// apart from a bounded validation cache and safe for concurrent use.
type PlanningService struct {
	store       PlanningStore
	config      ConfigSource
	absences    AbsenceSource
	expander    *expansion.Expander
	cache       *validationCache
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// PlanningServiceOptions configures optional service behavior.
type PlanningServiceOptions struct {
	CacheTTL     time.Duration
	CacheEntries int
	Logger       *slog.Logger
}

// NewPlanningService wires dependencies for planning orchestration.
func NewPlanningService(store PlanningStore, config ConfigSource, absences AbsenceSource, expander *expansion.Expander, idGenerator func() string, now func() time.Time, opts PlanningServiceOptions) *PlanningService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &PlanningService{
		store:       store,
		config:      config,
		absences:    absences,
		expander:    expander,
		cache:       newValidationCache(opts.CacheTTL, opts.CacheEntries),
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(opts.Logger),
	}
}

func (s *PlanningService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "PlanningService", operation, attrs...)
}

// CreateOrUpdatePlanningsFromTemplates expands the templates over the range,
// validates each resulting planning (informational; violations never block
// the create), and persists them. An empty template set is a valid, empty
// result.
func (s *PlanningService) CreateOrUpdatePlanningsFromTemplates(ctx context.Context, params GenerateParams) (generated []GeneratedPlanning, err error) {
	if s == nil {
		return nil, fmt.Errorf("PlanningService is nil")
	}

	logger := s.loggerWith(ctx, "CreateOrUpdatePlanningsFromTemplates",
		"site_id", params.SiteID,
		"template_count", len(params.TemplateIDs),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to generate plannings", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "plannings generated", "planning_count", len(generated))
	}()

	plannings, err := s.expander.Expand(ctx, expansion.Params{
		TemplateIDs: params.TemplateIDs,
		Range:       params.Range,
		SiteID:      params.SiteID,
	})
	if err != nil {
		err = mapExpansionError(err)
		return nil, err
	}
	if len(plannings) == 0 {
		return nil, nil
	}

	catalog, index, err := s.evaluationContext(ctx)
	if err != nil {
		return nil, err
	}

	generated = make([]GeneratedPlanning, 0, len(plannings))
	for _, planning := range plannings {
		absences, aErr := s.absencesFor(ctx, planning)
		if aErr != nil {
			err = mapRepoError(aErr)
			return nil, err
		}
		result := validation.Validate(planning, catalog, index, absences)

		planning.UpdatedAt = s.now()
		persisted, sErr := s.store.SaveDayPlanning(ctx, planning)
		if sErr != nil {
			err = mapRepoError(sErr)
			return nil, err
		}
		generated = append(generated, GeneratedPlanning{Planning: persisted, Validation: result})
	}

	s.cache.Invalidate()
	return generated, nil
}

// ValidatePlanning evaluates the planning without mutating or persisting
// anything. Results are cached by content fingerprint until the next
// mutation through this service.
func (s *PlanningService) ValidatePlanning(ctx context.Context, planning bloc.DayPlanning) (validation.Result, error) {
	if s == nil {
		return validation.Result{}, fmt.Errorf("PlanningService is nil")
	}

	key := planningFingerprint(planning)
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	catalog, index, err := s.evaluationContext(ctx)
	if err != nil {
		return validation.Result{}, err
	}
	absences, err := s.absencesFor(ctx, planning)
	if err != nil {
		return validation.Result{}, mapRepoError(err)
	}

	result := validation.Validate(planning, catalog, index, absences)
	s.cache.Store(key, result)
	return result, nil
}

// SaveDayPlanning upserts a planning keyed by date and site. A planning
// without an identifier receives one; a missing status defaults to DRAFT.
func (s *PlanningService) SaveDayPlanning(ctx context.Context, planning bloc.DayPlanning) (saved bloc.DayPlanning, err error) {
	if s == nil {
		return bloc.DayPlanning{}, fmt.Errorf("PlanningService is nil")
	}

	logger := s.loggerWith(ctx, "SaveDayPlanning",
		"date", planning.Date.String(),
		"site_id", planning.SiteID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to save planning", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("planning_id", saved.ID).InfoContext(ctx, "planning saved")
	}()

	if vErr := validatePlanningInput(planning); vErr.HasErrors() {
		err = vErr
		return bloc.DayPlanning{}, err
	}

	if planning.ID == "" {
		planning.ID = s.idGenerator()
	}
	if planning.Status == "" {
		planning.Status = bloc.StatusDraft
	}
	if planning.CreatedAt.IsZero() {
		planning.CreatedAt = s.now()
	}
	planning.UpdatedAt = s.now()

	saved, err = s.store.SaveDayPlanning(ctx, planning)
	if err != nil {
		err = mapRepoError(err)
		return bloc.DayPlanning{}, err
	}

	s.cache.Invalidate()
	return saved, nil
}

// StatusChange describes a requested lifecycle transition.
type StatusChange struct {
	Date   bloc.Date
	SiteID string
	To     bloc.PlanningStatus
	// AllowWarnings permits VALIDATED/PUBLISHED transitions despite
	// warning-severity findings. Error findings always block.
	AllowWarnings bool
}

// UpdatePlanningStatus applies the lifecycle policy: forward-only
// transitions plus explicit rollback to DRAFT, with validation gating the
// VALIDATED and PUBLISHED states.
func (s *PlanningService) UpdatePlanningStatus(ctx context.Context, change StatusChange) (updated bloc.DayPlanning, err error) {
	if s == nil {
		return bloc.DayPlanning{}, fmt.Errorf("PlanningService is nil")
	}

	logger := s.loggerWith(ctx, "UpdatePlanningStatus",
		"date", change.Date.String(),
		"site_id", change.SiteID,
		"to", string(change.To),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update planning status", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "planning status updated")
	}()

	planning, err := s.store.GetDayPlanning(ctx, change.Date, change.SiteID)
	if err != nil {
		err = mapRepoError(err)
		return bloc.DayPlanning{}, err
	}

	if !bloc.CanTransition(planning.Status, change.To) {
		vErr := &ValidationError{}
		vErr.add("status", fmt.Sprintf("cannot transition from %s to %s", planning.Status, change.To))
		err = vErr
		return bloc.DayPlanning{}, err
	}

	if change.To == bloc.StatusValidated || change.To == bloc.StatusPublished {
		result, vErr := s.ValidatePlanning(ctx, planning)
		if vErr != nil {
			err = vErr
			return bloc.DayPlanning{}, err
		}
		if len(result.Errors) > 0 || (len(result.Warnings) > 0 && !change.AllowWarnings) {
			err = &ValidationFailedError{Result: result}
			return bloc.DayPlanning{}, err
		}
	}

	planning.Status = change.To
	planning.UpdatedAt = s.now()

	updated, err = s.store.SaveDayPlanning(ctx, planning)
	if err != nil {
		err = mapRepoError(err)
		return bloc.DayPlanning{}, err
	}

	s.cache.Invalidate()
	return updated, nil
}

// DeleteDayPlanning removes the planning for the date and site.
func (s *PlanningService) DeleteDayPlanning(ctx context.Context, date bloc.Date, siteID string) (err error) {
	if s == nil {
		return fmt.Errorf("PlanningService is nil")
	}

	logger := s.loggerWith(ctx, "DeleteDayPlanning", "date", date.String(), "site_id", siteID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete planning", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "planning deleted")
	}()

	if err = s.store.DeleteDayPlanning(ctx, date, siteID); err != nil {
		err = mapRepoError(err)
		return err
	}

	s.cache.Invalidate()
	return nil
}

// evaluationContext loads the rule catalog and entity index.
func (s *PlanningService) evaluationContext(ctx context.Context) (*rules.Catalog, *bloc.Index, error) {
	ruleSet, err := s.config.ListSupervisionRules(ctx)
	if err != nil {
		return nil, nil, mapRepoError(err)
	}
	catalog, err := rules.NewCatalog(ruleSet)
	if err != nil {
		vErr := &ValidationError{}
		vErr.add("rules", err.Error())
		return nil, nil, vErr
	}

	rooms, err := s.config.ListRooms(ctx)
	if err != nil {
		return nil, nil, mapRepoError(err)
	}
	sectors, err := s.config.ListSectors(ctx)
	if err != nil {
		return nil, nil, mapRepoError(err)
	}
	staff, err := s.config.ListStaff(ctx)
	if err != nil {
		return nil, nil, mapRepoError(err)
	}

	return catalog, bloc.NewIndex(rooms, sectors, staff), nil
}

// absencesFor fetches the approved absences covering the planning's date for
// everyone appearing in it.
func (s *PlanningService) absencesFor(ctx context.Context, planning bloc.DayPlanning) ([]bloc.Absence, error) {
	if s.absences == nil {
		return nil, nil
	}
	userIDs, surgeonIDs := peopleIn(planning)
	if len(userIDs) == 0 && len(surgeonIDs) == 0 {
		return nil, nil
	}
	window := bloc.DateRange{Start: planning.Date, End: planning.Date}
	return s.absences.ListApprovedAbsences(ctx, userIDs, surgeonIDs, window)
}

func peopleIn(planning bloc.DayPlanning) (userIDs, surgeonIDs []string) {
	userSet := make(map[string]struct{})
	surgeonSet := make(map[string]struct{})
	for _, assignment := range planning.Rooms {
		if assignment.SurgeonID != "" {
			surgeonSet[assignment.SurgeonID] = struct{}{}
		}
		for _, supervisor := range assignment.Supervisors {
			userSet[supervisor.UserID] = struct{}{}
		}
	}
	return sortedSet(userSet), sortedSet(surgeonSet)
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func validatePlanningInput(planning bloc.DayPlanning) *ValidationError {
	vErr := &ValidationError{}
	if planning.Date.IsZero() {
		vErr.add("date", "date is required")
	}
	for _, assignment := range planning.Rooms {
		if assignment.RoomID == "" {
			vErr.add("salleId", "room assignment without a room")
			continue
		}
		for _, supervisor := range assignment.Supervisors {
			for _, period := range supervisor.Periods {
				if pErr := period.Validate(); pErr != nil {
					vErr.add("periodes", pErr.Error())
				}
			}
		}
	}
	return vErr
}

func mapExpansionError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, expansion.ErrInvalidRange) {
		vErr := &ValidationError{}
		vErr.add("range", "end date precedes start date")
		return vErr
	}
	return mapRepoError(err)
}
