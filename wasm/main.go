//go:build js && wasm
// +build js,wasm

package main

import (
	"encoding/json"
	"strings"
	"syscall/js"

	"github.com/sirupsen/logrus"

	"github.com/openfluke/brain/data"
	"github.com/openfluke/brain/flavor"
	"github.com/openfluke/brain/nn"
)

// Global state for the loaded network
var current flavor.Trainable

func jsSuccess(payload map[string]interface{}) js.Value {
	payload["success"] = true
	jsonData, _ := json.Marshal(payload)
	return js.ValueOf(string(jsonData))
}

func jsError(err error) js.Value {
	jsonData, _ := json.Marshal(map[string]interface{}{
		"success": false,
		"error":   err.Error(),
	})
	return js.ValueOf(string(jsonData))
}

// stringArg returns args[i] as a string, or "" when it is missing
func stringArg(args []js.Value, i int) string {
	if len(args) <= i || args[i].Type() != js.TypeString {
		return ""
	}
	return args[i].String()
}

// loaded wraps fn so that it fails while no network is loaded
func loaded(fn func(args []js.Value) js.Value) js.Func {
	return js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		if current == nil {
			return jsError(flavor.ErrNotLoaded)
		}
		return fn(args)
	})
}

func load() js.Func {
	return js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		t, err := flavor.New(stringArg(args, 0))
		if err != nil {
			return jsError(err)
		}
		if err := t.Load(strings.NewReader(stringArg(args, 1))); err != nil {
			return jsError(err)
		}
		current = t
		return jsSuccess(map[string]interface{}{"message": "network loaded"})
	})
}

func configure(args []js.Value) js.Value {
	if err := current.Configure(strings.NewReader(stringArg(args, 0))); err != nil {
		return jsError(err)
	}
	return jsSuccess(map[string]interface{}{"message": "network configured"})
}

func serialize(args []js.Value) js.Value {
	var sb strings.Builder
	if err := current.Serialize(&sb); err != nil {
		return jsError(err)
	}
	return jsSuccess(map[string]interface{}{"weights": json.RawMessage(sb.String())})
}

func deserialize(args []js.Value) js.Value {
	if err := current.Deserialize(strings.NewReader(stringArg(args, 0))); err != nil {
		return jsError(err)
	}
	return jsSuccess(map[string]interface{}{"message": "weights loaded"})
}

func train(args []js.Value) js.Value {
	set, err := data.ReadJSON(strings.NewReader(stringArg(args, 0)))
	if err != nil {
		return jsError(err)
	}
	result, err := current.Train(set)
	if err != nil {
		return jsError(err)
	}
	return jsSuccess(map[string]interface{}{
		"converged":   result.Converged,
		"iterations":  result.Iterations,
		"final_error": result.FinalError,
		"best_error":  result.BestError,
	})
}

// predict takes the input signal as a JS array of numbers
func predict(args []js.Value) js.Value {
	if len(args) < 1 || args[0].Type() != js.TypeObject {
		return jsError(nn.ErrDimensionMismatch)
	}
	input := make([]float64, args[0].Length())
	for i := range input {
		input[i] = args[0].Index(i).Float()
	}

	output, err := current.Predict(input)
	if err != nil {
		return jsError(err)
	}
	return jsSuccess(map[string]interface{}{"output": output})
}

func networkInfo(args []js.Value) js.Value {
	mlp, ok := current.(*flavor.MLP)
	if !ok || mlp.Network() == nil {
		return jsError(flavor.ErrNotLoaded)
	}
	return jsSuccess(map[string]interface{}{"network": nn.ExtractNetworkBlueprint(mlp.Network())})
}

func main() {
	logrus.Info("brain WASM module initialized")

	js.Global().Set("BrainListFlavors", js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		return jsSuccess(map[string]interface{}{"flavors": flavor.Names()})
	}))
	js.Global().Set("BrainLoad", load())
	js.Global().Set("BrainConfigure", loaded(configure))
	js.Global().Set("BrainSerialize", loaded(serialize))
	js.Global().Set("BrainDeserialize", loaded(deserialize))
	js.Global().Set("BrainTrain", loaded(train))
	js.Global().Set("BrainPredict", loaded(predict))
	js.Global().Set("BrainGetNetworkInfo", loaded(networkInfo))

	select {}
}
