package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSchedulingConfig(t *testing.T) {
	require.NoError(t, ValidateSchedulingConfig(DefaultSchedulingConfig()))

	cases := []SchedulingConfig{
		{StartHour: 20, EndHour: 7, Granularity: 30},
		{StartHour: 7, EndHour: 25, Granularity: 30},
		{StartHour: 7, EndHour: 20, Granularity: 0},
		{StartHour: 7, EndHour: 20, Granularity: 45},
		{StartHour: 7, EndHour: 20, Granularity: 30, Timezone: "Mars/Olympus"},
	}
	for _, tc := range cases {
		assert.Error(t, ValidateSchedulingConfig(tc), "%+v", tc)
	}
}

func TestSchedulingHolderSetRejectsInvalid(t *testing.T) {
	holder, err := NewStaticSchedulingConfigHolder(DefaultSchedulingConfig())
	require.NoError(t, err)

	err = holder.Set(SchedulingConfig{StartHour: 9, EndHour: 8, Granularity: 15})
	require.Error(t, err)
	assert.Equal(t, 30, holder.Get().Granularity)

	require.NoError(t, holder.Set(SchedulingConfig{StartHour: 8, EndHour: 18, Granularity: 15}))
	assert.Equal(t, 15, holder.Get().Granularity)
}
