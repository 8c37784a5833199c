package logger

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

func getOutputFormat(out io.Writer, tf string, noColor bool) zerolog.ConsoleWriter {
	output := zerolog.ConsoleWriter{Out: out, NoColor: noColor, TimeFormat: tf}
	output.FormatTimestamp = func(i interface{}) string {
		return fmt.Sprintf("[%v]", i)
	}
	output.FormatLevel = func(i interface{}) string {
		return strings.ToUpper(fmt.Sprintf("[%-5s]", i))
	}
	output.FormatMessage = func(i interface{}) string {
		return fmt.Sprintf("=> %v", i)
	}
	return output
}

func (l logger) clone() logger {
	out := l
	out.values = copySlice(l.values)
	return out
}

func copySlice(in []interface{}) []interface{} {
	out := make([]interface{}, len(in))
	copy(out, in)
	return out
}

// add converts a bunch of arbitrary key-value pairs into zerolog fields.
func add(e *zerolog.Event, keysAndVals []interface{}) {

	// make sure we got an even number of arguments
	if len(keysAndVals)%2 != 0 {
		e.Interface("args", keysAndVals).
			AnErr("zerologr-err", errors.New("odd number of arguments passed as key-value pairs for logging"))
		return
	}

	for i := 0; i < len(keysAndVals); {
		// process a key-value pair,
		// ensuring that the key is a string
		key, val := keysAndVals[i], keysAndVals[i+1]
		keyStr, isString := key.(string)
		if !isString {
			// if the key isn't a string, log additional error
			e.Interface("invalid key", key).
				AnErr("zerologr-err", errors.New("non-string key argument passed to logging, ignoring all later arguments"))
			return
		}
		if err, ok := val.(error); ok {
			e.AnErr(keyStr, err)
		} else {
			e.Interface(keyStr, val)
		}

		i += 2
	}
}
