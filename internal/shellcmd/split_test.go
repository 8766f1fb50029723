package shellcmd

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ward/internal/ports"
)

func TestSplitCompound(t *testing.T) {
	cases := []struct {
		command string
		want    []string
	}{
		{"git status", []string{"git status"}},
		{"git fetch && git rebase", []string{"git fetch", "git rebase"}},
		{"make || echo failed", []string{"make", "echo failed"}},
		{"cd /tmp; ls", []string{"cd /tmp", "ls"}},
		{"git log | head -5", []string{"git log", "head -5"}},
		{"echo 'a && b'", []string{"echo 'a && b'"}},
		{`echo "x | y"`, []string{`echo "x | y"`}},
		{"(cd sub && make) | tee log", []string{"(cd sub && make)", "tee log"}},
		{"sleep 5 &", []string{"sleep 5 &"}},
		{"", nil},
		{"   ", nil},
		{"a\nb", []string{"a", "b"}},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, SplitCompound(tc.command), "command %q", tc.command)
	}
}

func TestFields(t *testing.T) {
	require.Equal(t, []string{"git", "commit", "-m", "'two words'"}, Fields("git commit -m 'two words'"))
	require.Equal(t, []string{"ls", "-la"}, Fields("  ls   -la  "))
	require.Empty(t, Fields(""))
}

func TestBinary(t *testing.T) {
	cases := []struct {
		command string
		want    string
	}{
		{"git status", "git"},
		{"/usr/bin/git status", "git"},
		{"FOO=bar make build", "make"},
		{"CGO_ENABLED=0 GOOS=linux go build", "go"},
		{"", ""},
		{"FOO=bar", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Binary(tc.command), "command %q", tc.command)
	}
}

func TestPrefixForScope(t *testing.T) {
	got, err := PrefixForScope("git commit -m 'wip'", "", "")
	require.NoError(t, err)
	require.Equal(t, "git commit -m 'wip'", got, "default scope is exact")

	got, err = PrefixForScope("git commit -m 'wip'", ports.ScopeCommandFlags, "")
	require.NoError(t, err)
	require.Equal(t, "git commit", got, "subcommand binaries keep two tokens")

	got, err = PrefixForScope("ls -la /tmp", ports.ScopeCommandFlags, "")
	require.NoError(t, err)
	require.Equal(t, "ls", got, "plain binaries keep one token")

	got, err = PrefixForScope("/usr/bin/git push", ports.ScopeCommandOnly, "")
	require.NoError(t, err)
	require.Equal(t, "git", got)

	got, err = PrefixForScope("anything", ports.ScopeCustom, "git push origin")
	require.NoError(t, err)
	require.Equal(t, "git push origin", got)

	_, err = PrefixForScope("", "", "")
	require.Error(t, err)
}

func TestPrefixesForCommandDeduplicates(t *testing.T) {
	prefixes, err := PrefixesForCommand("go test ./a && go test ./b", ports.ScopeCommandFlags, "", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"go test"}, prefixes)
}

func TestPrefixesForCommandPerSubcommandScopes(t *testing.T) {
	prefixes, err := PrefixesForCommand("git status && ls -la /tmp", ports.ScopeExact, "",
		map[string]ports.ApprovalScope{"ls": ports.ScopeCommandOnly})
	require.NoError(t, err)
	require.Equal(t, []string{"git status", "ls"}, prefixes)
}

func TestValidatePatternRejectsWildcards(t *testing.T) {
	require.Error(t, ValidatePattern(""))
	require.Error(t, ValidatePattern("*"))
	require.Error(t, ValidatePattern(" * ? "))
	require.NoError(t, ValidatePattern("git *"))
}

func TestClassifierSafeToRemember(t *testing.T) {
	c := NewClassifier()

	safe := []string{
		"git status",
		"go test ./...",
		"npm run lint",
	}
	for _, cmd := range safe {
		require.True(t, c.SafeToRemember(cmd), "command %q", cmd)
	}

	unsafe := []string{
		"rm -rf build",
		"git clean -f && rm cache",
		"dd if=/dev/zero of=/dev/sda",
		"git push --force",
		"cat $(find . -name secrets)",
		"ls ~/private",
		"sudo apt install thing",
		"cd ../other-project",
		"kill -9 1234",
	}
	for _, cmd := range unsafe {
		require.False(t, c.SafeToRemember(cmd), "command %q", cmd)
	}
}
