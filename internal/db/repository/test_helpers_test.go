package repository

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

func tsAt(sec int) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: time.Date(2024, 3, 9, 9, 0, sec, 0, time.UTC), Valid: true}
}

func intPtr(v int) *int { return &v }
