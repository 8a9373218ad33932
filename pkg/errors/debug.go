package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Postgres SQLSTATE values the services react to.
const (
	SQLStateUniqueViolation      = "23505"
	SQLStateForeignKeyViolation  = "23503"
	SQLStateCheckViolation       = "23514"
	SQLStateSerializationFailure = "40001"
	SQLStateDeadlockDetected     = "40P01"
)

// PGFields carries the Postgres diagnostics of a driver error.
type PGFields struct {
	Code       string `json:"pg_code,omitempty"`
	Constraint string `json:"pg_constraint,omitempty"`
	Table      string `json:"pg_table,omitempty"`
	Column     string `json:"pg_column,omitempty"`
	Detail     string `json:"pg_detail,omitempty"`
	Message    string `json:"pg_message,omitempty"`
}

// PG extracts Postgres diagnostics from either driver. ok is false when
// the chain holds no Postgres error.
func PG(err error) (fields PGFields, ok bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return PGFields{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return PGFields{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}, true
	}
	return PGFields{}, false
}

// FromDB wraps a storage failure in the code its SQLSTATE implies.
// Unknown failures become CodeDependency.
func FromDB(err error, message string) *Error {
	if err == nil {
		return nil
	}
	if typed := As(err); typed != nil {
		return typed
	}
	fields, ok := PG(err)
	if !ok {
		return Wrap(CodeDependency, err, message)
	}
	switch fields.Code {
	case SQLStateUniqueViolation:
		return Wrap(CodeConflict, err, message).WithDetails(map[string]any{"constraint": fields.Constraint})
	case SQLStateForeignKeyViolation:
		return Wrap(CodeNotFound, err, message)
	case SQLStateCheckViolation:
		return Wrap(CodeValidation, err, message).WithDetails(map[string]any{"constraint": fields.Constraint})
	case SQLStateSerializationFailure, SQLStateDeadlockDetected:
		return Wrap(CodeConflict, err, message)
	default:
		return Wrap(CodeDependency, err, message)
	}
}

// Dump flattens err for the request.error log line.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Status     int      `json:"status"`
	Chain      []string `json:"chain,omitempty"`
	PG         PGFields `json:"pg"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error(), Code: CodeInternal, Status: http.StatusInternalServerError}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
		d.Status = MetadataFor(d.Code).HTTPStatus
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	d.PG, _ = PG(err)
	return d
}

// Fields renders the dump as log fields, omitting empty Postgres values.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{
		"error":       d.TopMessage,
		"error_code":  d.Code,
		"http_status": d.Status,
		"error_chain": d.Chain,
	}
	for key, value := range map[string]string{
		"pg_code":       d.PG.Code,
		"pg_constraint": d.PG.Constraint,
		"pg_table":      d.PG.Table,
		"pg_column":     d.PG.Column,
		"pg_detail":     d.PG.Detail,
		"pg_message":    d.PG.Message,
	} {
		if value != "" {
			fields[key] = value
		}
	}
	return fields
}
