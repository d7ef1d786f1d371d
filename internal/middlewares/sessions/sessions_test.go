package sessions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionData_IsMFAVerified(t *testing.T) {
	var data SessionData
	assert.False(t, data.IsMFAVerified(time.Hour))

	data.MFAVerifiedAt = time.Now().Add(-time.Minute)
	assert.True(t, data.IsMFAVerified(time.Hour))
	assert.False(t, data.IsMFAVerified(time.Second))
}
