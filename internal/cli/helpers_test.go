package cli

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// grepChainCommands writes out1, out11 and out111 in a chain.
const grepChainCommands = `# three chained greps
grep foo in1 > out1
grep foo out1 > out11

grep foo out11 > out111
`

// grepChainTrace is a round log for the grep chain. Every round of a run
// can reuse it: only workset commands receive sets.
const grepChainTrace = `[No Command]: r0 = SpecialRef(stdin)
[No Command]: r1 = SpecialRef(stdout)
[Command sh Rikerfile]: r0 = PathRef(r1, "out1", -w-)
[Command sh Rikerfile]: Launch([Command grep foo in1], {1=r0})
[Command sh Rikerfile]: r1 = PathRef(r1, "out11", -w-)
[Command sh Rikerfile]: Launch([Command grep foo out1], {1=r1})
[Command sh Rikerfile]: r2 = PathRef(r1, "out111", -w-)
[Command sh Rikerfile]: Launch([Command grep foo out11], {1=r2})
[Command grep foo in1]: r0 = PathRef(r1, "in1", r--)
[Command grep foo out1]: r0 = PathRef(r1, "out1", r--)
[Command grep foo out11]: r0 = PathRef(r1, "out11", r--)`

func traceLines() []string {
	return strings.Split(grepChainTrace, "\n")
}

// writeFile writes content to name inside a fresh temp dir.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// buffers returns separate stdout and stderr buffers.
func buffers() (*bytes.Buffer, *bytes.Buffer) {
	return &bytes.Buffer{}, &bytes.Buffer{}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
