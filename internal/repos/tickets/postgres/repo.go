package tickets

import (
	"database/sql"

	"github.com/fastprodman/tombola/internal/repos/tickets"
)

var _ tickets.Tickets = (*ticketsRepo)(nil)

type ticketsRepo struct{ db *sql.DB }

func New(db *sql.DB) *ticketsRepo {
	return &ticketsRepo{db: db}
}
