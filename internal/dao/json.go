package dao

import (
	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// jsonAPI sorts map keys so stored metadata is byte-stable.
var jsonAPI = sonic.ConfigStd

func toJSON(v any) (string, error) {
	s, err := jsonAPI.MarshalToString(v)
	if err != nil {
		return "", errors.Wrap(err, "encode json column")
	}
	return s, nil
}

func fromJSON(s string, v any) error {
	if s == "" {
		return nil
	}
	if err := jsonAPI.UnmarshalFromString(s, v); err != nil {
		return errors.Wrap(err, "decode json column")
	}
	return nil
}
