package initsys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		name    string
		command string
		wantCmd string
		want    []string
		wantErr bool
	}{
		{name: "simple", command: "systemctl restart mihomo", wantCmd: "systemctl", want: []string{"restart", "mihomo"}},
		{name: "quoted", command: `journalctl -u mihomo -g "fatal error"`, wantCmd: "journalctl", want: []string{"-u", "mihomo", "-g", "fatal error"}},
		{name: "single quotes", command: "sh -c 'echo ok'", wantCmd: "sh", want: []string{"-c", "echo ok"}},
		{name: "empty", command: "   ", wantErr: true},
		{name: "unclosed quote", command: `echo "oops`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args, err := splitCommand(tt.command)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCmd, cmd)
			assert.Equal(t, tt.want, args)
		})
	}
}

func TestNewDispatch(t *testing.T) {
	sys, err := New(Config{Type: "systemd"})
	require.NoError(t, err)
	assert.Equal(t, "systemd", sys.Type())

	sys, err = New(Config{Type: "openrc"})
	require.NoError(t, err)
	assert.Equal(t, "openrc", sys.Type())

	_, err = New(Config{Type: "custom"})
	require.Error(t, err, "custom 模式缺少命令时应报错")

	sys, err = New(Config{Type: "custom", Custom: CustomCommands{Start: "a", Stop: "b"}})
	require.NoError(t, err)
	assert.Equal(t, "custom", sys.Type())

	_, err = New(Config{Type: "sysvinit"})
	require.Error(t, err)
}

func TestDetectReturnsSomething(t *testing.T) {
	sys := Detect()
	require.NotNil(t, sys)
	assert.NotEmpty(t, sys.Type())
}
