// ==============================================================================
// ONBOARDING REPOSITORY IMPLEMENTATION
// ==============================================================================
// PostgreSQL persistence for onboardings, principals, risk assessments,
// document requirements, uploaded documents and approval records
// ==============================================================================

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"onboard/internal/domain"
	"onboard/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// OnboardingRepository implements onboarding persistence
type OnboardingRepository struct {
	db *sqlx.DB
}

// NewOnboardingRepository creates a new OnboardingRepository
func NewOnboardingRepository(db *sqlx.DB) *OnboardingRepository {
	return &OnboardingRepository{db: db}
}

// ==============================================================================
// ONBOARDINGS
// ==============================================================================

// CreateOnboarding inserts a new onboarding
func (r *OnboardingRepository) CreateOnboarding(ctx context.Context, ob *domain.Onboarding) error {
	query := `
		INSERT INTO onboardings (
			id, sponsor_name, fund_name, jurisdiction, entity_type,
			current_phase, status, risk_level, assigned_to, phase_started_at,
			created_at, updated_at
		) VALUES (
			:id, :sponsor_name, :fund_name, :jurisdiction, :entity_type,
			:current_phase, :status, :risk_level, :assigned_to, :phase_started_at,
			:created_at, :updated_at
		)
	`

	_, err := r.db.NamedExecContext(ctx, query, ob)
	if err != nil {
		return errors.Wrap(err, "failed to create onboarding")
	}

	return nil
}

// UpdateOnboarding updates an existing onboarding
func (r *OnboardingRepository) UpdateOnboarding(ctx context.Context, ob *domain.Onboarding) error {
	query := `
		UPDATE onboardings SET
			sponsor_name = :sponsor_name,
			fund_name = :fund_name,
			jurisdiction = :jurisdiction,
			entity_type = :entity_type,
			current_phase = :current_phase,
			status = :status,
			risk_level = :risk_level,
			assigned_to = :assigned_to,
			phase_started_at = :phase_started_at,
			updated_at = :updated_at
		WHERE id = :id
	`

	result, err := r.db.NamedExecContext(ctx, query, ob)
	if err != nil {
		return errors.Wrap(err, "failed to update onboarding")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check update result")
	}
	if rows == 0 {
		return errors.ErrOnboardingNotFound
	}

	return nil
}

// FindOnboardingByID retrieves an onboarding by id
func (r *OnboardingRepository) FindOnboardingByID(ctx context.Context, id uuid.UUID) (*domain.Onboarding, error) {
	var ob domain.Onboarding
	query := `SELECT * FROM onboardings WHERE id = $1`

	err := r.db.GetContext(ctx, &ob, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrOnboardingNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find onboarding")
	}

	return &ob, nil
}

// FindOnboardingsByStatus retrieves onboardings matching any of the statuses
func (r *OnboardingRepository) FindOnboardingsByStatus(ctx context.Context, statuses []domain.OnboardingStatus, limit, offset int) ([]*domain.Onboarding, error) {
	query, args, err := sqlx.In(
		`SELECT * FROM onboardings WHERE status IN (?) ORDER BY updated_at DESC LIMIT ? OFFSET ?`,
		statuses, limit, offset,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build status query")
	}

	var onboardings []*domain.Onboarding
	err = r.db.SelectContext(ctx, &onboardings, r.db.Rebind(query), args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find onboardings by status")
	}

	return onboardings, nil
}

// FindActiveOnboardings retrieves every onboarding not yet approved or rejected
func (r *OnboardingRepository) FindActiveOnboardings(ctx context.Context) ([]*domain.Onboarding, error) {
	var onboardings []*domain.Onboarding
	query := `
		SELECT * FROM onboardings
		WHERE status NOT IN ('approved', 'rejected')
		ORDER BY created_at ASC
	`

	err := r.db.SelectContext(ctx, &onboardings, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find active onboardings")
	}

	return onboardings, nil
}

// ==============================================================================
// PRINCIPALS
// ==============================================================================

// CreatePrincipal inserts a new principal
func (r *OnboardingRepository) CreatePrincipal(ctx context.Context, principal *domain.Principal) error {
	query := `
		INSERT INTO principals (
			id, onboarding_id, full_name, role_label, role,
			ownership_pct, is_ubo, screened_at, created_at
		) VALUES (
			:id, :onboarding_id, :full_name, :role_label, :role,
			:ownership_pct, :is_ubo, :screened_at, :created_at
		)
	`

	_, err := r.db.NamedExecContext(ctx, query, principal)
	if err != nil {
		return errors.Wrap(err, "failed to create principal")
	}

	return nil
}

// FindPrincipalsByOnboardingID retrieves all principals for an onboarding
func (r *OnboardingRepository) FindPrincipalsByOnboardingID(ctx context.Context, onboardingID uuid.UUID) ([]domain.Principal, error) {
	var principals []domain.Principal
	query := `SELECT * FROM principals WHERE onboarding_id = $1 ORDER BY created_at ASC`

	err := r.db.SelectContext(ctx, &principals, query, onboardingID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find principals")
	}

	return principals, nil
}

// ==============================================================================
// RISK ASSESSMENTS
// ==============================================================================

// CreateRiskAssessment inserts a new risk assessment
func (r *OnboardingRepository) CreateRiskAssessment(ctx context.Context, assessment *domain.RiskAssessment) error {
	query := `
		INSERT INTO risk_assessments (
			id, onboarding_id, score, rating, factors,
			edd_required, approval_level, assessed_at
		) VALUES (
			:id, :onboarding_id, :score, :rating, :factors,
			:edd_required, :approval_level, :assessed_at
		)
	`

	_, err := r.db.NamedExecContext(ctx, query, assessment)
	if err != nil {
		return errors.Wrap(err, "failed to create risk assessment")
	}

	return nil
}

// FindLatestRiskAssessment retrieves the authoritative assessment for an onboarding
func (r *OnboardingRepository) FindLatestRiskAssessment(ctx context.Context, onboardingID uuid.UUID) (*domain.RiskAssessment, error) {
	var assessment domain.RiskAssessment
	query := `
		SELECT * FROM risk_assessments
		WHERE onboarding_id = $1
		ORDER BY assessed_at DESC
		LIMIT 1
	`

	err := r.db.GetContext(ctx, &assessment, query, onboardingID)
	if err == sql.ErrNoRows {
		return nil, errors.ErrAssessmentNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find risk assessment")
	}

	return &assessment, nil
}

// ==============================================================================
// DOCUMENT REQUIREMENTS
// ==============================================================================

// CreateRequirements inserts a batch of document requirements
func (r *OnboardingRepository) CreateRequirements(ctx context.Context, requirements []domain.DocumentRequirement) error {
	if len(requirements) == 0 {
		return nil
	}

	query := `
		INSERT INTO document_requirements (
			id, onboarding_id, person_name, person_role, doc_type,
			status, uploaded_doc_id, manually_assigned, created_at, updated_at
		) VALUES (
			:id, :onboarding_id, :person_name, :person_role, :doc_type,
			:status, :uploaded_doc_id, :manually_assigned, :created_at, :updated_at
		)
	`

	_, err := r.db.NamedExecContext(ctx, query, requirements)
	if err != nil {
		return errors.Wrap(err, "failed to create requirements")
	}

	return nil
}

// UpdateRequirement updates one document requirement
func (r *OnboardingRepository) UpdateRequirement(ctx context.Context, requirement *domain.DocumentRequirement) error {
	query := `
		UPDATE document_requirements SET
			status = :status,
			uploaded_doc_id = :uploaded_doc_id,
			manually_assigned = :manually_assigned,
			updated_at = :updated_at
		WHERE id = :id
	`

	result, err := r.db.NamedExecContext(ctx, query, requirement)
	if err != nil {
		return errors.Wrap(err, "failed to update requirement")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check update result")
	}
	if rows == 0 {
		return errors.ErrRequirementNotFound
	}

	return nil
}

// FindRequirementsByOnboardingID retrieves all requirements for an onboarding
func (r *OnboardingRepository) FindRequirementsByOnboardingID(ctx context.Context, onboardingID uuid.UUID) ([]domain.DocumentRequirement, error) {
	var requirements []domain.DocumentRequirement
	query := `
		SELECT * FROM document_requirements
		WHERE onboarding_id = $1
		ORDER BY person_name ASC, doc_type ASC
	`

	err := r.db.SelectContext(ctx, &requirements, query, onboardingID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find requirements")
	}

	return requirements, nil
}

// FindRequirementByID retrieves one requirement by id
func (r *OnboardingRepository) FindRequirementByID(ctx context.Context, id uuid.UUID) (*domain.DocumentRequirement, error) {
	var requirement domain.DocumentRequirement
	query := `SELECT * FROM document_requirements WHERE id = $1`

	err := r.db.GetContext(ctx, &requirement, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrRequirementNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find requirement")
	}

	return &requirement, nil
}

// DeleteRequirementsByOnboardingID purges all requirements for an onboarding
func (r *OnboardingRepository) DeleteRequirementsByOnboardingID(ctx context.Context, onboardingID uuid.UUID) error {
	query := `DELETE FROM document_requirements WHERE onboarding_id = $1`

	_, err := r.db.ExecContext(ctx, query, onboardingID)
	if err != nil {
		return errors.Wrap(err, "failed to delete requirements")
	}

	return nil
}

// ==============================================================================
// UPLOADED DOCUMENTS
// ==============================================================================

// documentRow maps the uploaded_documents table; the analysis, assignment
// and override columns are JSONB.
type documentRow struct {
	ID                  uuid.UUID    `db:"id"`
	OnboardingID        uuid.UUID    `db:"onboarding_id"`
	Filename            string       `db:"filename"`
	Analysis            []byte       `db:"analysis"`
	SuggestedAssignment []byte       `db:"suggested_assignment"`
	Override            []byte       `db:"override"`
	UploadedAt          sql.NullTime `db:"uploaded_at"`
}

func toDocumentRow(doc *domain.UploadedDocument) (*documentRow, error) {
	row := &documentRow{
		ID:           doc.ID,
		OnboardingID: doc.OnboardingID,
		Filename:     doc.Filename,
		UploadedAt:   sql.NullTime{Time: doc.UploadedAt, Valid: !doc.UploadedAt.IsZero()},
	}

	var err error
	if doc.Analysis != nil {
		if row.Analysis, err = json.Marshal(doc.Analysis); err != nil {
			return nil, errors.Wrap(err, "failed to marshal analysis")
		}
	}
	if doc.SuggestedAssignment != nil {
		if row.SuggestedAssignment, err = json.Marshal(doc.SuggestedAssignment); err != nil {
			return nil, errors.Wrap(err, "failed to marshal assignment")
		}
	}
	if doc.Override != nil {
		if row.Override, err = json.Marshal(doc.Override); err != nil {
			return nil, errors.Wrap(err, "failed to marshal override")
		}
	}

	return row, nil
}

func (row *documentRow) toDomain() (*domain.UploadedDocument, error) {
	doc := &domain.UploadedDocument{
		ID:           row.ID,
		OnboardingID: row.OnboardingID,
		Filename:     row.Filename,
	}
	if row.UploadedAt.Valid {
		doc.UploadedAt = row.UploadedAt.Time
	}

	if len(row.Analysis) > 0 {
		doc.Analysis = &domain.DocumentAnalysis{}
		if err := json.Unmarshal(row.Analysis, doc.Analysis); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal analysis")
		}
	}
	if len(row.SuggestedAssignment) > 0 {
		doc.SuggestedAssignment = &domain.Assignment{}
		if err := json.Unmarshal(row.SuggestedAssignment, doc.SuggestedAssignment); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal assignment")
		}
	}
	if len(row.Override) > 0 {
		doc.Override = &domain.DocumentOverride{}
		if err := json.Unmarshal(row.Override, doc.Override); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal override")
		}
	}

	return doc, nil
}

// CreateDocument inserts a new uploaded document
func (r *OnboardingRepository) CreateDocument(ctx context.Context, doc *domain.UploadedDocument) error {
	row, err := toDocumentRow(doc)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO uploaded_documents (
			id, onboarding_id, filename, analysis, suggested_assignment,
			override, uploaded_at
		) VALUES (
			:id, :onboarding_id, :filename, :analysis, :suggested_assignment,
			:override, :uploaded_at
		)
	`

	_, err = r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return errors.Wrap(err, "failed to create document")
	}

	return nil
}

// UpdateDocument updates an uploaded document
func (r *OnboardingRepository) UpdateDocument(ctx context.Context, doc *domain.UploadedDocument) error {
	row, err := toDocumentRow(doc)
	if err != nil {
		return err
	}

	query := `
		UPDATE uploaded_documents SET
			filename = :filename,
			analysis = :analysis,
			suggested_assignment = :suggested_assignment,
			override = :override
		WHERE id = :id
	`

	result, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return errors.Wrap(err, "failed to update document")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check update result")
	}
	if rows == 0 {
		return errors.ErrDocumentNotFound
	}

	return nil
}

// FindDocumentByID retrieves one uploaded document by id
func (r *OnboardingRepository) FindDocumentByID(ctx context.Context, id uuid.UUID) (*domain.UploadedDocument, error) {
	var row documentRow
	query := `SELECT * FROM uploaded_documents WHERE id = $1`

	err := r.db.GetContext(ctx, &row, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrDocumentNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find document")
	}

	return row.toDomain()
}

// FindDocumentsByOnboardingID retrieves all documents for an onboarding
func (r *OnboardingRepository) FindDocumentsByOnboardingID(ctx context.Context, onboardingID uuid.UUID) ([]*domain.UploadedDocument, error) {
	var rows []documentRow
	query := `SELECT * FROM uploaded_documents WHERE onboarding_id = $1 ORDER BY uploaded_at ASC`

	err := r.db.SelectContext(ctx, &rows, query, onboardingID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find documents")
	}

	docs := make([]*domain.UploadedDocument, 0, len(rows))
	for i := range rows {
		doc, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

// ==============================================================================
// APPROVAL RECORDS
// ==============================================================================

// UpsertApprovalRecord writes the authoritative record for one
// (onboarding, step) pair, replacing any earlier record for that step
func (r *OnboardingRepository) UpsertApprovalRecord(ctx context.Context, record *domain.ApprovalRecord) error {
	query := `
		INSERT INTO approval_records (
			id, onboarding_id, step, status, signed_by, signer_role,
			comments, timestamp
		) VALUES (
			:id, :onboarding_id, :step, :status, :signed_by, :signer_role,
			:comments, :timestamp
		)
		ON CONFLICT (onboarding_id, step) DO UPDATE SET
			status = EXCLUDED.status,
			signed_by = EXCLUDED.signed_by,
			signer_role = EXCLUDED.signer_role,
			comments = EXCLUDED.comments,
			timestamp = EXCLUDED.timestamp
	`

	_, err := r.db.NamedExecContext(ctx, query, record)
	if err != nil {
		return errors.Wrap(err, "failed to upsert approval record")
	}

	return nil
}

// FindApprovalRecords retrieves all approval records for an onboarding
func (r *OnboardingRepository) FindApprovalRecords(ctx context.Context, onboardingID uuid.UUID) ([]*domain.ApprovalRecord, error) {
	var records []*domain.ApprovalRecord
	query := `SELECT * FROM approval_records WHERE onboarding_id = $1 ORDER BY timestamp ASC`

	err := r.db.SelectContext(ctx, &records, query, onboardingID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find approval records")
	}

	return records, nil
}
