package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/liquida-dev/liquida/internal/id"
	"github.com/liquida-dev/liquida/internal/model"
)

//go:embed schema.sql
var schema string

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// insertColumns are written by InsertMany and InsertOne, in placeholder order.
var insertColumns = []string{
	"import_id", "user_id",
	"exported_at", "transacted_at", "chargeback_at",
	"transaction_id", "acquirer_transaction_id",
	"establishment", "establishment_tax_id", "establishment_mcc",
	"accreditor", "accreditor_tax_id", "representative", "representative_tax_id",
	"cardholder", "card", "customer",
	"modality", "installments", "card_brand",
	"equipment_serial", "equipment_id", "equipment_model",
	"gross_amount", "net_amount", "original_amount",
	"acquirer", "channel", "status", "failure_reason", "plan", "nsu", "split", "parent_transaction",
}

// selectColumns mirrors scanRecord.
const selectColumns = `id::text, import_id::text, COALESCE(user_id, ''),
	exported_at, transacted_at, chargeback_at,
	transaction_id, acquirer_transaction_id,
	establishment, COALESCE(establishment_tax_id, ''), COALESCE(establishment_mcc, ''),
	COALESCE(accreditor, ''), COALESCE(accreditor_tax_id, ''),
	COALESCE(representative, ''), COALESCE(representative_tax_id, ''),
	COALESCE(cardholder, ''), COALESCE(card, ''), COALESCE(customer, ''),
	modality, installments, COALESCE(card_brand, ''),
	COALESCE(equipment_serial, ''), COALESCE(equipment_id, ''), COALESCE(equipment_model, ''),
	gross_amount::text, net_amount::text, original_amount::text,
	acquirer, COALESCE(channel, ''), COALESCE(status, ''), COALESCE(failure_reason, ''),
	COALESCE(plan, ''), COALESCE(nsu, ''), COALESCE(split, ''), COALESCE(parent_transaction, ''),
	created_at`

// Postgres is the pgx-backed Store.
type Postgres struct {
	db *pgxpool.Pool
}

// NewPostgres connects to dsn and verifies the connection.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Postgres{db: pool}, nil
}

func (p *Postgres) Close() { p.db.Close() }

// Migrate applies the embedded schema. It is idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

func (p *Postgres) InsertMany(ctx context.Context, records []model.TransactionRecord) ([]model.TransactionRecord, error) {
	if len(records) == 0 {
		return nil, nil
	}

	var (
		sb   strings.Builder
		args = make([]any, 0, len(records)*len(insertColumns))
	)
	sb.WriteString("INSERT INTO transactions (" + strings.Join(insertColumns, ", ") + ") VALUES ")
	for i, r := range records {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(placeholders(len(args)+1, len(insertColumns)))
		args = append(args, insertArgs(r)...)
	}
	sb.WriteString(" RETURNING id::text, transaction_id, acquirer_transaction_id, created_at")

	rows, err := p.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	byKey := make(map[string]model.TransactionRecord, len(records))
	for _, r := range records {
		byKey[r.Key()] = r
	}
	var inserted []model.TransactionRecord
	for rows.Next() {
		var (
			rowID, txID, acqID string
			createdAt          time.Time
		)
		if err := rows.Scan(&rowID, &txID, &acqID, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning inserted row: %w", err)
		}
		r := byKey[txID+"\x00"+acqID]
		r.ID, r.CreatedAt = rowID, createdAt
		inserted = append(inserted, r)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return inserted, nil
}

func (p *Postgres) InsertOne(ctx context.Context, record model.TransactionRecord) (*model.TransactionRecord, error) {
	sql := "INSERT INTO transactions (" + strings.Join(insertColumns, ", ") + ") VALUES " +
		placeholders(1, len(insertColumns)) + " RETURNING id::text, created_at"

	err := p.db.QueryRow(ctx, sql, insertArgs(record)...).Scan(&record.ID, &record.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err)
	}
	return &record, nil
}

func (p *Postgres) Query(ctx context.Context, q Query) ([]model.TransactionRecord, error) {
	where, args := whereClause(q)
	sql := "SELECT " + selectColumns + " FROM transactions" + where + " ORDER BY transacted_at DESC, id"
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += " LIMIT $" + strconv.Itoa(len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		sql += " OFFSET $" + strconv.Itoa(len(args))
	}

	rows, err := p.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	var out []model.TransactionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading transactions: %w", err)
	}
	return out, nil
}

func (p *Postgres) Summarize(ctx context.Context, q Query) (model.Summary, error) {
	where, args := whereClause(q)
	sql := "SELECT COUNT(*), COALESCE(SUM(gross_amount), 0)::text, COALESCE(SUM(net_amount), 0)::text FROM transactions" + where

	var (
		s          model.Summary
		gross, net string
	)
	if err := p.db.QueryRow(ctx, sql, args...).Scan(&s.Count, &gross, &net); err != nil {
		return model.Summary{}, fmt.Errorf("summarizing transactions: %w", err)
	}
	var err error
	if s.Gross, err = decimal.NewFromString(gross); err != nil {
		return model.Summary{}, fmt.Errorf("parsing gross sum %q: %w", gross, err)
	}
	if s.Net, err = decimal.NewFromString(net); err != nil {
		return model.Summary{}, fmt.Errorf("parsing net sum %q: %w", net, err)
	}
	return s, nil
}

func (p *Postgres) CreateImport(ctx context.Context, imp model.ImportRecord) (model.ImportRecord, error) {
	if imp.ID == "" {
		imp.ID = id.New()
	}
	if imp.Status == "" {
		imp.Status = model.ImportPending
	}
	err := p.db.QueryRow(ctx,
		`INSERT INTO imports (id, user_id, filename, status, rows_imported)
		 VALUES ($1, NULLIF($2, ''), $3, $4, $5) RETURNING imported_at`,
		imp.ID, imp.UserID, imp.Filename, string(imp.Status), imp.RowsImported,
	).Scan(&imp.ImportedAt)
	if err != nil {
		return model.ImportRecord{}, fmt.Errorf("creating import: %w", err)
	}
	return imp, nil
}

func (p *Postgres) UpdateImportStatus(ctx context.Context, importID string, status model.ImportStatus, rowsImported int) error {
	tag, err := p.db.Exec(ctx,
		"UPDATE imports SET status = $1, rows_imported = $2 WHERE id = $3",
		string(status), rowsImported, importID)
	if err != nil {
		return fmt.Errorf("updating import %s: %w", importID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("import %s: %w", importID, ErrNotFound)
	}
	return nil
}

func (p *Postgres) GetImport(ctx context.Context, importID string) (model.ImportRecord, error) {
	rows, err := p.db.Query(ctx,
		`SELECT id::text, COALESCE(user_id, ''), filename, status, rows_imported, imported_at
		 FROM imports WHERE id = $1`, importID)
	if err != nil {
		return model.ImportRecord{}, fmt.Errorf("reading import %s: %w", importID, err)
	}
	imps, err := collectImports(rows)
	if err != nil {
		return model.ImportRecord{}, err
	}
	if len(imps) == 0 {
		return model.ImportRecord{}, fmt.Errorf("import %s: %w", importID, ErrNotFound)
	}
	return imps[0], nil
}

func (p *Postgres) ImportHistory(ctx context.Context, limit int) ([]model.ImportRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := p.db.Query(ctx,
		`SELECT id::text, COALESCE(user_id, ''), filename, status, rows_imported, imported_at
		 FROM imports ORDER BY imported_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("reading import history: %w", err)
	}
	return collectImports(rows)
}

func collectImports(rows pgx.Rows) ([]model.ImportRecord, error) {
	defer rows.Close()
	var out []model.ImportRecord
	for rows.Next() {
		var (
			imp    model.ImportRecord
			status string
		)
		if err := rows.Scan(&imp.ID, &imp.UserID, &imp.Filename, &status, &imp.RowsImported, &imp.ImportedAt); err != nil {
			return nil, fmt.Errorf("scanning import: %w", err)
		}
		imp.Status = model.ImportStatus(status)
		out = append(out, imp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading imports: %w", err)
	}
	return out, nil
}

func scanRecord(rows pgx.Rows) (model.TransactionRecord, error) {
	var (
		r                    model.TransactionRecord
		modality             string
		gross, net, original string
	)
	err := rows.Scan(
		&r.ID, &r.ImportID, &r.UserID,
		&r.ExportedAt, &r.TransactedAt, &r.ChargebackAt,
		&r.TransactionID, &r.AcquirerTransactionID,
		&r.Establishment, &r.EstablishmentTaxID, &r.EstablishmentMCC,
		&r.Accreditor, &r.AccreditorTaxID,
		&r.Representative, &r.RepresentativeTaxID,
		&r.Cardholder, &r.Card, &r.Customer,
		&modality, &r.Installments, &r.CardBrand,
		&r.EquipmentSerial, &r.EquipmentID, &r.EquipmentModel,
		&gross, &net, &original,
		&r.Acquirer, &r.Channel, &r.Status, &r.FailureReason,
		&r.Plan, &r.NSU, &r.Split, &r.ParentTransaction,
		&r.CreatedAt,
	)
	if err != nil {
		return model.TransactionRecord{}, fmt.Errorf("scanning transaction: %w", err)
	}
	r.Modality = model.Modality(modality)
	for _, f := range []struct {
		text string
		dst  *decimal.Decimal
	}{{gross, &r.GrossAmount}, {net, &r.NetAmount}, {original, &r.OriginalAmount}} {
		d, err := decimal.NewFromString(f.text)
		if err != nil {
			return model.TransactionRecord{}, fmt.Errorf("parsing amount %q: %w", f.text, err)
		}
		*f.dst = d
	}
	return r, nil
}

// whereClause renders the filtering fields of q as " WHERE ..." plus args.
func whereClause(q Query) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if q.From != nil {
		add("transacted_at >= ?", q.From.UTC())
	}
	if q.To != nil {
		add("transacted_at <= ?", q.To.UTC())
	}
	if len(q.Acquirers) > 0 {
		add("acquirer = ANY(?)", q.Acquirers)
	}
	if len(q.Modalities) > 0 {
		mods := make([]string, len(q.Modalities))
		for i, m := range q.Modalities {
			mods[i] = string(m)
		}
		add("modality = ANY(?)", mods)
	}
	if q.ImportID != "" {
		add("import_id = ?", q.ImportID)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// placeholders renders "($start, $start+1, ...)" for n parameters.
func placeholders(start, n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = "$" + strconv.Itoa(start+i)
	}
	return "(" + strings.Join(ps, ", ") + ")"
}

// insertArgs returns r's values in insertColumns order. Empty optional text is NULL.
func insertArgs(r model.TransactionRecord) []any {
	return []any{
		r.ImportID, nullable(r.UserID),
		r.ExportedAt.UTC(), r.TransactedAt.UTC(), utcPtr(r.ChargebackAt),
		r.TransactionID, r.AcquirerTransactionID,
		r.Establishment, nullable(r.EstablishmentTaxID), nullable(r.EstablishmentMCC),
		nullable(r.Accreditor), nullable(r.AccreditorTaxID), nullable(r.Representative), nullable(r.RepresentativeTaxID),
		nullable(r.Cardholder), nullable(r.Card), nullable(r.Customer),
		string(r.Modality), r.Installments, nullable(r.CardBrand),
		nullable(r.EquipmentSerial), nullable(r.EquipmentID), nullable(r.EquipmentModel),
		r.GrossAmount.String(), r.NetAmount.String(), r.OriginalAmount.String(),
		r.Acquirer, nullable(r.Channel), nullable(r.Status), nullable(r.FailureReason),
		nullable(r.Plan), nullable(r.NSU), nullable(r.Split), nullable(r.ParentTransaction),
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// mapError converts a unique violation to ErrDuplicate.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, ErrDuplicate)
	}
	return fmt.Errorf("inserting transactions: %w", err)
}
