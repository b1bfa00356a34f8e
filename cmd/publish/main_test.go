package main

import (
	"testing"

	"github.com/m-mizutani/gt"
)

func TestParseRunOptions(t *testing.T) {
	opts, err := parseRunOptions("", "", true)
	gt.NoError(t, err)
	gt.True(t, opts.DryRun)
	gt.V(t, opts.Draft).Nil()
	gt.A(t, opts.Platforms).Length(0)

	opts, err = parseRunOptions("FALSE", " devto, ,webhook ", false)
	gt.NoError(t, err)
	gt.V(t, opts.Draft).NotNil()
	gt.False(t, *opts.Draft)
	gt.Equal(t, opts.Platforms, []string{"devto", "webhook"})

	opts, err = parseRunOptions("1", "", false)
	gt.NoError(t, err)
	gt.True(t, *opts.Draft)
}

func TestParseRunOptionsRejectsUnknownDraft(t *testing.T) {
	for _, v := range []string{"yes", "TRUE ", "ture"} {
		_, err := parseRunOptions(v, "", false)
		gt.Error(t, err)
	}
}
