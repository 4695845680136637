package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"geogate/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS allowed_ips (
    ip         INET PRIMARY KEY,
    label      TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS allowed_countries (
    country_code CHAR(2) PRIMARY KEY,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS access_decisions (
    id             UUID PRIMARY KEY,
    ip             TEXT NOT NULL,
    allowed        BOOLEAN NOT NULL,
    block_reason   TEXT,
    country_code   TEXT NOT NULL DEFAULT '',
    asn            BIGINT,
    organization   TEXT,
    classification JSONB,
    error          TEXT NOT NULL DEFAULT '',
    decided_at     TIMESTAMPTZ NOT NULL
);
`

type PostgresRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewPostgresRepository(db *sqlx.DB, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{
		db:     db,
		logger: logger,
	}
}

func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// LoadAllowLists reads the stored allow-lists. It is called once at startup;
// the resulting policy is not refreshed while the process runs.
func (r *PostgresRepository) LoadAllowLists(ctx context.Context) ([]string, []string, error) {
	var ips []string
	if err := r.db.SelectContext(ctx, &ips, "SELECT host(ip) FROM allowed_ips ORDER BY ip"); err != nil {
		return nil, nil, fmt.Errorf("loading allowed ips: %w", err)
	}

	var countries []string
	if err := r.db.SelectContext(ctx, &countries, "SELECT country_code FROM allowed_countries ORDER BY country_code"); err != nil {
		return nil, nil, fmt.Errorf("loading allowed countries: %w", err)
	}

	return ips, countries, nil
}

type decisionRow struct {
	ID             string    `db:"id"`
	IP             string    `db:"ip"`
	Allowed        bool      `db:"allowed"`
	BlockReason    *string   `db:"block_reason"`
	CountryCode    string    `db:"country_code"`
	ASN            *int64    `db:"asn"`
	Organization   *string   `db:"organization"`
	Classification *string   `db:"classification"`
	Error          string    `db:"error"`
	DecidedAt      time.Time `db:"decided_at"`
}

func (r *PostgresRepository) SaveDecision(ctx context.Context, d *model.AccessDecision) error {
	row := decisionRow{
		ID:           d.ID,
		IP:           d.IP,
		Allowed:      d.Allowed,
		BlockReason:  d.BlockReason,
		CountryCode:  d.Country,
		Organization: d.Organization,
		Error:        d.Error,
		DecidedAt:    time.Now().UTC(),
	}
	if d.ASN != nil {
		asn := int64(*d.ASN)
		row.ASN = &asn
	}
	if d.Classification != nil {
		payload, err := json.Marshal(d.Classification)
		if err != nil {
			return fmt.Errorf("encoding classification: %w", err)
		}
		classification := string(payload)
		row.Classification = &classification
	}

	query := `
        INSERT INTO access_decisions
            (id, ip, allowed, block_reason, country_code, asn, organization, classification, error, decided_at)
        VALUES
            (:id, :ip, :allowed, :block_reason, :country_code, :asn, :organization, :classification, :error, :decided_at)
    `
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		r.logger.Error("failed to insert access decision",
			zap.String("id", d.ID),
			zap.String("ip", d.IP),
			zap.Error(err))
		return err
	}
	return nil
}
