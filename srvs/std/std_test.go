package std_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	zrm "github.com/zrm-robotics/zrm-go"
	"github.com/zrm-robotics/zrm-go/srvs/std"
)

func TestServiceIdentifiers(t *testing.T) {
	cases := []struct {
		msg  any
		want string
	}{
		{std.TriggerRequest{}, "zrm/srvs/std/Trigger.Request"},
		{std.TriggerResponse{}, "zrm/srvs/std/Trigger.Response"},
		{std.SetBoolRequest{}, "zrm/srvs/std/SetBool.Request"},
		{std.SetBoolResponse{}, "zrm/srvs/std/SetBool.Response"},
	}
	for _, tc := range cases {
		name, err := zrm.GetTypeName(tc.msg)
		require.NoError(t, err)
		require.Equal(t, tc.want, name)
	}
}
