// Package analytics defines the dashboard analytics resource kept in sync by
// creditpulse and the validator that gates every payload before it can be
// cached.
//
// The analytics API returns an untyped document in camelCase form:
//
//	{
//	  "totalCreditsOwned": 120.5,
//	  "creditsTraded": {"today": 4, "thisWeek": 31},
//	  "marketPrice": {
//	    "current": 52.5,
//	    "change24h": 2.4,
//	    "trend": [{"date": "2026-10-13", "price": 50.0}, ...]
//	  },
//	  "emissionsOffset": {"total": 105, "thisMonth": 40, "target": 1000},
//	  "additional_metrics": {"batches_produced": 2, "total_transactions": 9, "active_orders": 1}
//	}
//
// [Validate] checks that every required field is present with the right kind
// (numbers are numbers, nested objects are objects, each trend point is
// checked individually) and converts the document into a [Dashboard]. Any
// mismatch rejects the whole payload; nothing is coerced.
package analytics
