package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func mapPgErrorToServiceError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return newServiceError(http.StatusNotFound, "NOT_FOUND", "not found", err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		recordWriteConflict("unique")
		switch pgErr.ConstraintName {
		case "import_jobs_one_active":
			return newServiceError(http.StatusConflict, "IMPORT_CONFLICT", "an import is already running for this project", err)
		case "wbs_nodes_project_id_external_unique_id_key":
			return newServiceError(http.StatusConflict, "WBS_DUPLICATE_EXTERNAL_ID", "duplicate external id within project", err)
		default:
			return newServiceError(http.StatusConflict, "CONFLICT", "unique constraint violated", err)
		}
	case "23503": // foreign_key_violation
		recordWriteConflict("foreign_key")
		return newServiceError(http.StatusUnprocessableEntity, "REFERENCE_NOT_FOUND", "referenced row not found", err)
	case "23514": // check_violation
		return newServiceError(http.StatusBadRequest, "INVALID_VALUE", "value violates a data constraint", err)
	default:
		return newServiceError(http.StatusInternalServerError, "INTERNAL", fmt.Sprintf("database error (%s)", pgErr.Code), err)
	}
}
