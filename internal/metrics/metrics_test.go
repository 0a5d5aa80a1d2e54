package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("orders", "2xx")
		IncOrder("containers")
	})

	before := testutil.ToFloat64(bookingConflicts)
	IncConflict()
	assert.Equal(t, before+1, testutil.ToFloat64(bookingConflicts))

	IncNotification("confirmation", nil)
	IncNotification("confirmation", errors.New("smtp down"))
	assert.Equal(t, float64(1), testutil.ToFloat64(notifications.WithLabelValues("confirmation", "error")))

	IncSyncTask("calendar_upsert", nil)
	assert.Equal(t, float64(1), testutil.ToFloat64(syncTasks.WithLabelValues("calendar_upsert", "ok")))
}
