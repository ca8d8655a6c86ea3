package discovery

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTailKeepsLastLines(t *testing.T) {
	tail := NewTail(3)
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(tail, "line %d\n", i)
	}
	assert.Equal(t, "line 3\nline 4\nline 5", tail.String())
}

func TestTailJoinsSplitWrites(t *testing.T) {
	tail := NewTail(0)
	_, _ = tail.Write([]byte("hel"))
	_, _ = tail.Write([]byte("lo\r\nwor"))
	assert.Equal(t, "hello\nwor", tail.String())
	_, _ = tail.Write([]byte("ld\n"))
	assert.Equal(t, "hello\nworld", tail.String())
}

func TestTailBoundsPartialLine(t *testing.T) {
	tail := NewTail(1)
	n, err := tail.Write([]byte(strings.Repeat("x", 3*maxPartialLine)))
	assert.NoError(t, err)
	assert.Equal(t, 3*maxPartialLine, n)
	assert.Len(t, tail.String(), maxPartialLine)
}
