//go:build ignore

// Release builder, run with: go run build.go -platforms linux-arm64
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// rtmidi binding needs cgo, so every target carries its cross compiler.
var availableTargets = []target{
	{goos: "linux", goarch: "arm", goarm: "6", cc: "arm-linux-gnueabi-gcc"},
	{goos: "linux", goarch: "arm", goarm: "7", cc: "arm-linux-gnueabihf-gcc"},
	{goos: "linux", goarch: "arm64", cc: "aarch64-linux-gnu-gcc"}, // ARMv8
	{goos: "linux", goarch: "386", cc: "i686-linux-gnu-gcc"},
	{goos: "linux", goarch: "amd64", cc: "gcc"},
}

type target struct {
	goos   string
	goarch string
	goarm  string
	cc     string
}

func (t *target) String() string {
	if t.goarm != "" {
		return fmt.Sprintf("%s-%s-v%s", t.goos, t.goarch, t.goarm)
	}
	return fmt.Sprintf("%s-%s", t.goos, t.goarch)
}

func (t *target) env() []string {
	var envVars = []string{
		fmt.Sprintf("GOOS=%s", t.goos),
		fmt.Sprintf("GOARCH=%s", t.goarch),
	}
	if t.goarm != "" {
		envVars = append(envVars, fmt.Sprintf("GOARM=%s", t.goarm))
	}
	if cgo {
		envVars = append(envVars, "CGO_ENABLED=1", fmt.Sprintf("CC=%s", t.cc))
	} else {
		envVars = append(envVars, "CGO_ENABLED=0")
	}
	return envVars
}

type buildError struct {
	target         target
	stdout, stderr string
}

func build(t target, buildErrors chan<- buildError) error {
	var binaryPath = fmt.Sprintf("./builds/%s-%s", basename, t.String())

	params := []string{"build", "-o", binaryPath}
	if tags != "" {
		params = append(params, "-tags", tags)
	}
	if race {
		params = append(params, "-race")
	}
	params = append(params, project)

	cmd := exec.Command("go", params...)
	cmd.Env = append(os.Environ(), t.env()...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		buildErrors <- buildError{target: t, stdout: stdout.String(), stderr: stderr.String()}
	}
	return err
}

var selection, project, basename, tags string
var cgo, race bool

func selectTargets() ([]target, error) {
	if selection == "all" {
		return availableTargets, nil
	}
	var selected []target
	for _, rt := range strings.Split(selection, ",") {
		var found = false
		for _, t := range availableTargets {
			if t.String() == rt {
				selected = append(selected, t)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("target not found: %s", rt)
		}
	}
	return selected, nil
}

func main() {
	var names []string
	for _, t := range availableTargets {
		names = append(names, t.String())
	}
	flag.StringVar(&selection, "platforms", "all", fmt.Sprintf(
		"comma-separated target platform list\navailable: %s", strings.Join(names, ",")),
	)
	flag.StringVar(&project, "project", "./cmd/strummer/", "choose project directory")
	flag.StringVar(&basename, "base", "strummer", "base filename for output binaries")
	flag.StringVar(&tags, "tags", "", "comma-separated build tags")
	flag.BoolVar(&cgo, "cgo", true, "cgo, required by rtmidi driver")
	flag.BoolVar(&race, "race", false, "include race detector")
	flag.Parse()

	log.SetFlags(log.Ltime)

	selectedTargets, err := selectTargets()
	if err != nil {
		log.Print(err)
		os.Exit(1)
	}

	var selectedNames []string
	for _, t := range selectedTargets {
		selectedNames = append(selectedNames, t.String())
	}
	log.Printf("selected targets: %s", strings.Join(selectedNames, ", "))

	var buildErrors = make(chan buildError, len(selectedTargets))
	var mu sync.Mutex
	var ok = true

	wg := sync.WaitGroup{}
	log.Printf("engaging parallel building for %d targets\n", len(selectedTargets))
	for _, t := range selectedTargets {
		wg.Add(1)
		go func(t target) {
			defer wg.Done()
			log.Printf("building target %s          %s", project, t.String())
			if err := build(t, buildErrors); err != nil {
				log.Printf("building target %s failed:  %s (%s)", project, t.String(), err)
				mu.Lock()
				ok = false
				mu.Unlock()
				return
			}
			log.Printf("building target %s success: %s", project, t.String())
		}(t)
	}
	wg.Wait()
	close(buildErrors)

	for e := range buildErrors {
		fmt.Printf("\n>>> Failed build: project: %s, base: %s, target: %s\n", project, basename, e.target.String())
		if e.stdout != "" {
			fmt.Printf("======== STDOUT ========\n%s========================\n", e.stdout)
		}
		if e.stderr != "" {
			fmt.Printf("======== STDERR ========\n%s========================\n", e.stderr)
		}
	}

	if !ok {
		os.Exit(1)
	}
}
