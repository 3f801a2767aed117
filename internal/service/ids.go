package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
}

func newEventID(now time.Time) string {
	return fmt.Sprintf("evt-%d-%s", now.UnixMilli(), randomSuffix())
}

func newBatchID(now time.Time) string {
	return fmt.Sprintf("batch-%d-%s", now.UnixMilli(), randomSuffix())
}

func newCorrelationID() string {
	return "corr-" + uuid.NewString()
}
