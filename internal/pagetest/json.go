package pagetest

import jsoniter "github.com/json-iterator/go"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func unmarshal(payload string, out any) error {
	return json.UnmarshalFromString(payload, out)
}
