package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescribeSQL(t *testing.T) {
	cases := []struct {
		sql   string
		op    string
		table string
	}{
		{`SELECT * FROM "patients" WHERE id = $1`, "SELECT", "patients"},
		{`INSERT INTO payments (id, amount) VALUES ($1, $2)`, "INSERT", "payments"},
		{`UPDATE "treatments" SET amount_paid = $1`, "UPDATE", "treatments"},
		{`DELETE FROM appointments WHERE id = ?`, "DELETE", "appointments"},
		{``, "UNKNOWN", ""},
	}
	for _, tc := range cases {
		op, table := describeSQL(tc.sql)
		assert.Equal(t, tc.op, op, tc.sql)
		assert.Equal(t, tc.table, table, tc.sql)
	}
}
