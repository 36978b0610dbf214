package main

/*
#include <stdlib.h>
*/
import "C"

import (
	"encoding/json"
	"strings"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/openfluke/brain/data"
	"github.com/openfluke/brain/flavor"
	"github.com/openfluke/brain/nn"
)

// Helper functions for JSON responses
func errJSON(err error) *C.char {
	msg, _ := json.Marshal(map[string]string{"error": err.Error()})
	return C.CString(string(msg))
}

func asJSON(v interface{}) *C.char {
	raw, err := json.Marshal(v)
	if err != nil {
		return errJSON(err)
	}
	return C.CString(string(raw))
}

func okJSON(message string) *C.char {
	return asJSON(map[string]string{"status": "success", "message": message})
}

// Global instance (simplified single-network API)
var current flavor.Trainable

//export BrainListFlavors
func BrainListFlavors() *C.char {
	return asJSON(flavor.Names())
}

//export BrainLoad
func BrainLoad(flavorName *C.char, topologyJSON *C.char) *C.char {
	t, err := flavor.New(C.GoString(flavorName))
	if err != nil {
		return errJSON(err)
	}
	if err := t.Load(strings.NewReader(C.GoString(topologyJSON))); err != nil {
		return errJSON(errors.Wrap(err, "failed to load network"))
	}
	current = t

	return okJSON("network loaded")
}

//export BrainConfigure
func BrainConfigure(settingsJSON *C.char) *C.char {
	if current == nil {
		return errJSON(flavor.ErrNotLoaded)
	}
	if err := current.Configure(strings.NewReader(C.GoString(settingsJSON))); err != nil {
		return errJSON(err)
	}
	return okJSON("network configured")
}

//export BrainSerialize
func BrainSerialize() *C.char {
	if current == nil {
		return errJSON(flavor.ErrNotLoaded)
	}

	var sb strings.Builder
	if err := current.Serialize(&sb); err != nil {
		return errJSON(err)
	}
	return C.CString(sb.String())
}

//export BrainDeserialize
func BrainDeserialize(weightsJSON *C.char) *C.char {
	if current == nil {
		return errJSON(flavor.ErrNotLoaded)
	}
	if err := current.Deserialize(strings.NewReader(C.GoString(weightsJSON))); err != nil {
		return errJSON(err)
	}
	return okJSON("weights loaded")
}

//export BrainTrain
func BrainTrain(dataJSON *C.char) *C.char {
	if current == nil {
		return errJSON(flavor.ErrNotLoaded)
	}

	set, err := data.ReadJSON(strings.NewReader(C.GoString(dataJSON)))
	if err != nil {
		return errJSON(errors.Wrap(err, "invalid data"))
	}

	result, err := current.Train(set)
	if err != nil {
		return errJSON(err)
	}
	return asJSON(result)
}

//export BrainPredict
func BrainPredict(inputs *C.double, length C.int) *C.char {
	if current == nil {
		return errJSON(flavor.ErrNotLoaded)
	}

	// Convert C array to Go slice
	inputSlice := unsafe.Slice((*float64)(unsafe.Pointer(inputs)), int(length))
	signal := make([]float64, length)
	copy(signal, inputSlice)

	output, err := current.Predict(signal)
	if err != nil {
		return errJSON(err)
	}
	return asJSON(output)
}

//export BrainGetNetworkInfo
func BrainGetNetworkInfo() *C.char {
	if current == nil {
		return errJSON(flavor.ErrNotLoaded)
	}

	mlp, ok := current.(*flavor.MLP)
	if !ok || mlp.Network() == nil {
		return errJSON(flavor.ErrNotLoaded)
	}
	return asJSON(nn.ExtractNetworkBlueprint(mlp.Network()))
}

//export FreeBrainString
func FreeBrainString(str *C.char) {
	C.free(unsafe.Pointer(str))
}

func main() {}
