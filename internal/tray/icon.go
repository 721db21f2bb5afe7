package tray

import (
	"unicode/utf8"

	"github.com/mixtray/mixtray/internal/platform"
)

// CallbackMessage is the message the shell sends to the event window for
// pointer activity on the icon. The originating mouse message is in lParam.
const CallbackMessage = platform.WM_APP + 1

// QuitMessage asks the loop thread to quit. It may be posted from any
// goroutine.
const QuitMessage = platform.WM_APP + 2

// IconState is the metadata registered with the shell.
type IconState struct {
	Icon            platform.Handle
	Tip             [platform.TipSize]byte
	CallbackMessage uint32
}

// NewIconState builds icon metadata. The tooltip is truncated to fit the
// fixed buffer with room for the terminating NUL, without splitting a
// UTF-8 sequence; the rest of the buffer stays zeroed.
func NewIconState(icon platform.Handle, tooltip string) IconState {
	s := IconState{Icon: icon, CallbackMessage: CallbackMessage}
	copy(s.Tip[:], truncateTip(tooltip))
	return s
}

// Tooltip returns the tooltip text up to the first NUL.
func (s IconState) Tooltip() string {
	for i, b := range s.Tip {
		if b == 0 {
			return string(s.Tip[:i])
		}
	}
	return string(s.Tip[:])
}

func (s IconState) notifyData(owner platform.HWND, id uint32) *platform.NotifyIconData {
	return &platform.NotifyIconData{
		Owner:           owner,
		ID:              id,
		CallbackMessage: s.CallbackMessage,
		Icon:            s.Icon,
		Tip:             s.Tip,
	}
}

func truncateTip(s string) string {
	const max = platform.TipSize - 1
	if len(s) <= max {
		return s
	}
	n := max
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// BottomRight returns the top-left position that puts a window of the
// given size flush with the bottom-right corner of work. A window larger
// than the work area is pinned to the work area origin instead.
func BottomRight(work, win platform.Rect) (x, y int32) {
	x = work.Right - win.Width()
	y = work.Bottom - win.Height()
	if x < work.Left {
		x = work.Left
	}
	if y < work.Top {
		y = work.Top
	}
	return x, y
}
