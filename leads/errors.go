package leads

import "errors"

// ErrInsufficientSignal is returned by AutoCapture when the contact fields
// known for a chat do not pass validation; no lead is created. The
// inactivity scanner logs this case and schedules no follow-up prompt.
var ErrInsufficientSignal = errors.New("leads: insufficient contact signal for auto-capture")
