package tts

/*
#cgo LDFLAGS: -lespeak-ng
#include <stdlib.h>
#include <string.h>
#include <espeak-ng/speak_lib.h>

static int initialized = 0;

int
espeak_say(const char *text, const char *lang, int rate)
{
	if (!text || !lang)
	{ return -1; }

	if (!initialized)
	{
		if (espeak_Initialize(AUDIO_OUTPUT_SYNCH_PLAYBACK, 500, NULL, 0) < 0)
		{ return -2; }
		initialized = 1;
	}

	espeak_VOICE specs;
	memset(&specs, 0, sizeof(specs));
	specs.languages = lang;
	espeak_SetVoiceByProperties(&specs);
	espeak_SetParameter(espeakRATE, rate, 0);

	if (espeak_Synth(text, strlen(text) + 1, 0, POS_CHARACTER, 0, espeakCHARS_AUTO, NULL, NULL) != EE_OK)
	{ return -3; }
	espeak_Synchronize();

	return 0;
}
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"
)

// Espeak speaks through espeak-ng. Calls block until playback ends and are
// serialized.
type Espeak struct {
	mu       sync.Mutex
	Language string
	// Rate is words per minute.
	Rate int
}

func NewEspeak() *Espeak {
	return &Espeak{Language: "en", Rate: 170}
}

func (e *Espeak) Speak(text string) error {
	if text == "" {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ctext := C.CString(text)
	defer C.free(unsafe.Pointer(ctext))
	clang := C.CString(e.Language)
	defer C.free(unsafe.Pointer(clang))

	if rc := C.espeak_say(ctext, clang, C.int(e.Rate)); rc != 0 {
		return fmt.Errorf("espeak_say failed: %d", int(rc))
	}
	return nil
}
