/*
Copyright 2021 ICS-FORTH.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package bootstrap renders a JobConfig's bootstrapScript into the
// literal shell command placed into TaskInfo.Executor.Command, and
// keeps a bounded transcript of what was rendered for operator
// diagnostics.
package bootstrap

import (
	"bytes"
	"strconv"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/armon/circbuf"
	"github.com/pkg/errors"
)

// Params is the context a bootstrapScript template is rendered against.
type Params struct {
	JobName       string
	ShardingItem  int
	JobParameter  string
	ItemParameter string
	AppURL        string
}

// Render executes script as a text/template template (with sprig funcs)
// against params, producing the literal command string.
func Render(script string, params Params) (string, error) {
	tmpl, err := template.New("bootstrap").Funcs(sprig.TxtFuncMap()).Parse(script)
	if err != nil {
		return "", errors.Wrapf(err, "cannot parse bootstrap script for %s", params.JobName)
	}

	var buf bytes.Buffer

	if err := tmpl.Execute(&buf, params); err != nil {
		return "", errors.Wrapf(err, "cannot render bootstrap script for %s", params.JobName)
	}

	return buf.String(), nil
}

// defaultTranscriptSize bounds the diagnostics ring buffer at 64KiB,
// enough for a few hundred rendered commands without growing unbounded
// across a long-lived engine process.
const defaultTranscriptSize = 64 * 1024

// Transcript is a bounded, append-only record of rendered commands,
// read back through Tail. No schedulerctl subcommand reads it.
type Transcript struct {
	buf *circbuf.Buffer
}

// NewTranscript returns an empty, bounded Transcript.
func NewTranscript() (*Transcript, error) {
	buf, err := circbuf.NewBuffer(defaultTranscriptSize)
	if err != nil {
		return nil, errors.Wrap(err, "cannot allocate diagnostics transcript")
	}

	return &Transcript{buf: buf}, nil
}

// Record appends a rendered command line to the transcript.
func (t *Transcript) Record(jobName string, shardingItem int, command string) {
	line := jobName + "#" + strconv.Itoa(shardingItem) + ": " + command + "\n"
	_, _ = t.buf.Write([]byte(line))
}

// Tail returns the transcript content recorded so far.
func (t *Transcript) Tail() string {
	return string(t.buf.Bytes())
}
