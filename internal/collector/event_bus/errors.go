package event_bus

import "errors"

var ErrMissingSpanID = errors.New("span closed event has no span id")
