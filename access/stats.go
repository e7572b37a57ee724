/*
stats.go - Summary aggregation over codes and audit events

PURPOSE:
  Derives the admin dashboard counts on demand by scanning the code
  population (status via DeriveStatus) and the audit log (login counts,
  unique users). Nothing here is stored; stats are always consistent with
  the records they are computed from.

PRECISION:
  Utilization (uses consumed / uses issued) is computed with
  decimal.Decimal so the ratio is exact rather than a float artifact.

SEE ALSO:
  - service.go: GetStats adds the 24h login window from the AuditLog
*/
package access

import (
	"time"

	"github.com/shopspring/decimal"
)

// Aggregate computes summary stats for a code population and event
// history at now. The 24h login window is filled in by the caller, which
// has AuditLog access.
func Aggregate(codes []Code, events []Event, now time.Time) Stats {
	stats := Stats{TotalCodes: len(codes)}

	issued := decimal.Zero
	consumed := decimal.Zero
	for _, c := range codes {
		switch DeriveStatus(c, now) {
		case StatusDisabled:
			stats.DisabledCodes++
		case StatusExpired:
			stats.ExpiredCodes++
		case StatusExhausted:
			stats.ExhaustedCodes++
		default:
			stats.ActiveCodes++
		}
		issued = issued.Add(decimal.NewFromInt(int64(c.TotalUses)))
		consumed = consumed.Add(decimal.NewFromInt(int64(c.TotalUses - c.UsesLeft)))
	}

	users := make(map[string]struct{})
	for _, e := range events {
		if e.Action != ActionLogin {
			continue
		}
		stats.TotalLogins++
		if e.User != "" {
			users[e.User] = struct{}{}
		}
	}
	stats.UniqueUsers = len(users)

	if issued.IsPositive() {
		stats.Utilization = consumed.Div(issued).Round(4).String()
	} else {
		stats.Utilization = "0"
	}
	return stats
}
