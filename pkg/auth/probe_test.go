package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePIDs(t *testing.T) {
	assert.Equal(t, []int{12, 345}, parsePIDs("12\n345\n"))
	assert.Equal(t, []int{7}, parsePIDs("  7 \n\nnot-a-pid\n"))
	assert.Nil(t, parsePIDs(""))
}

func TestTasklistHasImage(t *testing.T) {
	running := "\r\nchrome.exe                    4120 Console                    1    162,304 K\r\n"
	none := "INFO: No tasks are running which match the specified criteria.\r\n"

	assert.True(t, tasklistHasImage(running, "chrome.exe"))
	assert.True(t, tasklistHasImage(running, "Chrome.exe"))
	assert.False(t, tasklistHasImage(none, "chrome.exe"))
}
