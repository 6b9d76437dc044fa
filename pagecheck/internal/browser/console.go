package browser

import (
	"strings"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/pagecheck/pagecheck/scenario"
)

// consoleMessage flattens a console API call into one line of text, the
// way a devtools console shows it.
func consoleMessage(e *proto.RuntimeConsoleAPICalled) scenario.ConsoleMessage {
	parts := make([]string, 0, len(e.Args))
	for _, a := range e.Args {
		parts = append(parts, remoteObjectText(a))
	}
	return scenario.ConsoleMessage{
		Level:     string(e.Type),
		Text:      strings.Join(parts, " "),
		Timestamp: time.Now().UnixMilli(),
	}
}

func remoteObjectText(a *proto.RuntimeRemoteObject) string {
	switch {
	case a == nil:
		return ""
	case a.Type == proto.RuntimeRemoteObjectTypeUndefined:
		return "undefined"
	case a.UnserializableValue != "":
		return string(a.UnserializableValue)
	case a.Type == proto.RuntimeRemoteObjectTypeObject && a.Description != "":
		return a.Description
	case !a.Value.Nil():
		return a.Value.Str()
	}
	return a.Description
}
