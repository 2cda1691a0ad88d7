package pgdriver

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
)

// ServerVersion is a parsed Postgres server version, used to gate the
// Cost Estimator's generic-plan EXPLAIN mode (§4.4) and the Session
// Orchestrator's pg_stat_statements column choice (§6).
type ServerVersion struct {
	Raw   string
	Major int
	Minor int
}

func (v ServerVersion) String() string {
	return fmt.Sprintf("PostgreSQL %d.%d", v.Major, v.Minor)
}

func (v ServerVersion) AtLeast(major int) bool {
	return v.Major >= major
}

// SupportsGenericPlan reports whether EXPLAIN (GENERIC_PLAN) is
// available — added in Postgres 16. This is the version gate §4.4
// requires before running a parameterized query without dummy-literal
// substitution.
func (v ServerVersion) SupportsGenericPlan() bool {
	return v.Major >= 16
}

// StatStatementsColumns returns the pg_stat_statements timing column
// names appropriate for this server version (§6): v13+ renamed
// total_time/mean_time to total_exec_time/mean_exec_time.
func (v ServerVersion) StatStatementsColumns() (total, mean string) {
	if v.Major >= 13 {
		return "total_exec_time", "mean_exec_time"
	}
	return "total_time", "mean_time"
}

var versionRe = regexp.MustCompile(`PostgreSQL (\d+)(?:\.(\d+))?`)

// ParseVersion parses the output of Postgres's version() function.
func ParseVersion(raw string) (ServerVersion, error) {
	m := versionRe.FindStringSubmatch(raw)
	if len(m) < 2 {
		return ServerVersion{}, fmt.Errorf("could not parse version: %s", raw)
	}
	major, _ := strconv.Atoi(m[1])
	minor := 0
	if len(m) > 2 && m[2] != "" {
		minor, _ = strconv.Atoi(m[2])
	}
	return ServerVersion{Raw: raw, Major: major, Minor: minor}, nil
}

// GetServerVersion queries and parses the connected server's version.
func GetServerVersion(ctx context.Context, d *SqlDriver) (ServerVersion, error) {
	rows, err := d.Execute(ctx, "SELECT version()", nil, true)
	if err != nil {
		return ServerVersion{}, fmt.Errorf("querying version: %w", err)
	}
	if len(rows) == 0 {
		return ServerVersion{}, fmt.Errorf("version() returned no rows")
	}
	raw, _ := rows[0].Cells["version"].(string)
	return ParseVersion(raw)
}
