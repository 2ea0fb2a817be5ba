package yolov5

/*
#include <stdint.h>

void trtshim_init_logging(void);
*/
import "C"
import "sync"

// trtLogSinks maps the opaque cookie passed through the C shim back to
// the Go Logger a runtime was created with
var trtLogSinks = struct {
	sync.Mutex
	m    map[uintptr]Logger
	next uintptr
}{m: make(map[uintptr]Logger)}

func init() {
	// install the C trampoline that forwards TensorRT log messages into
	// goTRTLog
	C.trtshim_init_logging()
}

// registerLogSink attaches a logger and returns the cookie identifying it
// in callbacks
func registerLogSink(logger Logger) uintptr {
	trtLogSinks.Lock()
	defer trtLogSinks.Unlock()

	trtLogSinks.next++
	trtLogSinks.m[trtLogSinks.next] = logger

	return trtLogSinks.next
}

// updateLogSink replaces the logger registered under cookie
func updateLogSink(cookie uintptr, logger Logger) {
	trtLogSinks.Lock()
	defer trtLogSinks.Unlock()

	if _, ok := trtLogSinks.m[cookie]; ok {
		trtLogSinks.m[cookie] = logger
	}
}

// unregisterLogSink removes the logger registered under cookie
func unregisterLogSink(cookie uintptr) {
	trtLogSinks.Lock()
	defer trtLogSinks.Unlock()

	delete(trtLogSinks.m, cookie)
}

//export goTRTLog
func goTRTLog(severity C.int, msg *C.char, user C.uintptr_t) {

	trtLogSinks.Lock()
	logger := trtLogSinks.m[uintptr(user)]
	trtLogSinks.Unlock()

	if logger == nil {
		return
	}

	// map nvinfer1::ILogger::Severity to LogLevel
	var level LogLevel

	switch severity {
	case 0, 1: // kINTERNAL_ERROR, kERROR
		level = LogError
	case 2: // kWARNING
		level = LogWarning
	case 3: // kINFO
		level = LogInfo
	default: // kVERBOSE
		level = LogDebug
	}

	logger.Logf(level, "[TensorRT] %s", C.GoString(msg))
}
