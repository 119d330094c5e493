package firmware

import (
	"errors"
	"fmt"
	"strings"
)

// Status is a firmware return code. Non-success values are errors.
type Status uint64

const errorBit = 1 << 63

const (
	Success           Status = 0
	LoadError         Status = errorBit | 1
	InvalidParameter  Status = errorBit | 2
	Unsupported       Status = errorBit | 3
	BadBufferSize     Status = errorBit | 4
	BufferTooSmall    Status = errorBit | 5
	NotReady          Status = errorBit | 6
	DeviceError       Status = errorBit | 7
	WriteProtected    Status = errorBit | 8
	OutOfResources    Status = errorBit | 9
	NotFound          Status = errorBit | 14
	AccessDenied      Status = errorBit | 15
	Aborted           Status = errorBit | 21
	SecurityViolation Status = errorBit | 26
)

var statusNames = map[Status]string{
	Success:           "Success",
	LoadError:         "Load Error",
	InvalidParameter:  "Invalid Parameter",
	Unsupported:       "Unsupported",
	BadBufferSize:     "Bad Buffer Size",
	BufferTooSmall:    "Buffer Too Small",
	NotReady:          "Not Ready",
	DeviceError:       "Device Error",
	WriteProtected:    "Write Protected",
	OutOfResources:    "Out of Resources",
	NotFound:          "Not Found",
	AccessDenied:      "Access Denied",
	Aborted:           "Aborted",
	SecurityViolation: "Security Violation",
}

func (s Status) IsError() bool { return s&errorBit != 0 }

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	if s.IsError() {
		return fmt.Sprintf("Error 0x%X", uint64(s&^errorBit))
	}
	return fmt.Sprintf("Warning 0x%X", uint64(s))
}

func (s Status) Error() string { return s.String() }

// StatusOf maps an error back to a firmware status. Errors that carry no
// status are reported as DeviceError.
func StatusOf(err error) Status {
	if err == nil {
		return Success
	}
	var s Status
	if errors.As(err, &s) {
		return s
	}
	return DeviceError
}

// ParseStatus accepts the names produced by Status.String, ignoring case
// and spaces. "ok" and "" mean Success.
func ParseStatus(name string) (Status, error) {
	want := strings.ToLower(strings.ReplaceAll(name, " ", ""))
	if want == "" || want == "ok" {
		return Success, nil
	}
	for s, n := range statusNames {
		if strings.ToLower(strings.ReplaceAll(n, " ", "")) == want {
			return s, nil
		}
	}
	return Success, fmt.Errorf("unknown status %q", name)
}
