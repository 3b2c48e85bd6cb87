// Package app runs the console menu that selects a camera and saved data
// and launches the interactive sessions.
package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strconv"
	"strings"

	"pose-aligner/internal/config"
	"pose-aligner/internal/store"
	"pose-aligner/ui/prefs"
)

// File name prefixes of saved data.
const (
	CalibrationPrefix = "cal_"
	ReferencePrefix   = "ref_"
)

var separator = strings.Repeat("* ", 30)

// Launcher starts the interactive sessions on a camera.
type Launcher interface {
	Position(ctx context.Context, camera int, cal *store.Calibration, ref *store.Reference) error
	Reference(ctx context.Context, camera int, cal *store.Calibration) error
	Calibration(ctx context.Context, camera int) error
	DetectCameras() []int
}

// App is the main menu loop.
type App struct {
	cfg    *config.Config
	prefs  *prefs.Prefs
	in     *bufio.Scanner
	out    io.Writer
	launch Launcher
	camera int
}

// New returns an App reading operator input from in. A camera index stored
// in p is selected up front.
func New(cfg *config.Config, p *prefs.Prefs, in io.Reader, out io.Writer, launch Launcher) *App {
	return &App{
		cfg:    cfg,
		prefs:  p,
		in:     bufio.NewScanner(in),
		out:    out,
		launch: launch,
		camera: p.Int(prefs.KeyCamera, -1),
	}
}

// Camera returns the selected camera index, or -1.
func (a *App) Camera() int { return a.camera }

// Ask prints prompt and returns the next input line.
func (a *App) Ask(prompt string) (string, error) {
	fmt.Fprint(a.out, prompt)
	if !a.in.Scan() {
		if err := a.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(a.in.Text()), nil
}

func (a *App) printMenu() {
	fmt.Fprintf(a.out, "\n%s\n", separator)
	fmt.Fprintln(a.out, "Menu:")
	fmt.Fprintln(a.out, "1 - Select camera index")
	fmt.Fprintln(a.out, "2 - Position")
	fmt.Fprintln(a.out, "3 - Reference")
	fmt.Fprintln(a.out, "4 - Calibration")
	fmt.Fprintln(a.out, "5 - Detect camera indexes")
	fmt.Fprintln(a.out, "0 - Exit")
}

// Run loops over the menu until the operator exits, input ends or ctx is
// canceled.
func (a *App) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		a.printMenu()
		choice, err := a.Ask("\nEnter your choice: ")
		if err == io.EOF {
			fmt.Fprintln(a.out, "Exiting...")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, separator)

		switch choice {
		case "1":
			if err := a.selectCamera(); err != nil {
				if err == io.EOF {
					fmt.Fprintln(a.out, "Exiting...")
					return nil
				}
				return err
			}
		case "2":
			a.position(ctx)
		case "3":
			a.reference(ctx)
		case "4":
			a.calibration(ctx)
		case "5":
			fmt.Fprintf(a.out, "\nDetected camera indexes: %v\n", a.launch.DetectCameras())
		case "0":
			fmt.Fprintln(a.out, "Exiting...")
			return nil
		default:
			fmt.Fprintln(a.out, "Invalid input")
		}
	}
}

func (a *App) selectCamera() error {
	for {
		line, err := a.Ask("Select camera index: ")
		if err != nil {
			return err
		}
		idx, err := strconv.Atoi(line)
		if err != nil || idx < 0 {
			fmt.Fprint(a.out, "\nInvalid input\n\n")
			continue
		}
		a.camera = idx
		a.prefs.SetInt(prefs.KeyCamera, idx)
		a.savePrefs()
		fmt.Fprintf(a.out, "\nSelected camera index %d\n\n", idx)
		return nil
	}
}

func (a *App) savePrefs() {
	if err := a.prefs.Save(); err != nil {
		log.Printf("app: saving preferences: %v", err)
	}
}

func (a *App) needCamera() bool {
	if a.camera < 0 {
		fmt.Fprintln(a.out, "Select camera index first")
		return false
	}
	return true
}

// selectFile lists the saved files with prefix and reads the operator's
// pick. An empty answer reuses the file remembered under key.
func (a *App) selectFile(prefix, key string) (string, bool) {
	files, err := store.List(a.cfg.DataDir, prefix, store.Extension)
	if err != nil {
		log.Printf("app: %v", err)
		return "", false
	}
	if len(files) == 0 {
		fmt.Fprint(a.out, "No saved data found in the specified directory\n\n")
		return "", false
	}
	last := a.prefs.String(key)
	fmt.Fprintln(a.out, "Available saved data:")
	for i, f := range files {
		mark := ""
		if f == last {
			mark = " (last used)"
		}
		fmt.Fprintf(a.out, "%d - %s%s\n", i+1, filepath.Base(f), mark)
	}
	fmt.Fprintln(a.out)

	line, err := a.Ask("Enter the number of the saved data: ")
	if err != nil {
		return "", false
	}
	if line == "" && last != "" {
		for _, f := range files {
			if f == last {
				fmt.Fprintf(a.out, "\nSaved data %s selected\n\n", filepath.Base(f))
				return f, true
			}
		}
	}
	idx, err := strconv.Atoi(line)
	if err != nil {
		fmt.Fprint(a.out, "\nInvalid input\n\n")
		return "", false
	}
	if idx < 1 || idx > len(files) {
		fmt.Fprint(a.out, "\nNo valid selection made\n\n")
		return "", false
	}
	f := files[idx-1]
	a.prefs.SetString(key, f)
	a.savePrefs()
	fmt.Fprintf(a.out, "\nSaved data %s selected\n\n", filepath.Base(f))
	return f, true
}

func (a *App) loadCalibration() (*store.Calibration, bool) {
	fmt.Fprint(a.out, "Please select calibration data\n\n")
	path, ok := a.selectFile(CalibrationPrefix, prefs.KeyCalibration)
	if !ok {
		return nil, false
	}
	cal, err := store.LoadCalibration(path)
	if err != nil {
		fmt.Fprintf(a.out, "Calibration data is not usable: %v\n", err)
		return nil, false
	}
	return cal, true
}

func (a *App) loadReference() (*store.Reference, bool) {
	fmt.Fprint(a.out, "Please select reference data\n\n")
	path, ok := a.selectFile(ReferencePrefix, prefs.KeyReference)
	if !ok {
		return nil, false
	}
	ref, err := store.LoadReference(path)
	if err != nil {
		fmt.Fprintf(a.out, "Reference data is not usable: %v\n", err)
		return nil, false
	}
	return ref, true
}

func (a *App) position(ctx context.Context) {
	if !a.needCamera() {
		return
	}
	cal, ok := a.loadCalibration()
	if !ok {
		return
	}
	ref, ok := a.loadReference()
	if !ok {
		return
	}
	if err := a.launch.Position(ctx, a.camera, cal, ref); err != nil {
		log.Printf("position: %v", err)
	}
}

func (a *App) reference(ctx context.Context) {
	if !a.needCamera() {
		return
	}
	cal, ok := a.loadCalibration()
	if !ok {
		return
	}
	if err := a.launch.Reference(ctx, a.camera, cal); err != nil {
		log.Printf("reference: %v", err)
	}
}

func (a *App) calibration(ctx context.Context) {
	if !a.needCamera() {
		return
	}
	if err := a.launch.Calibration(ctx, a.camera); err != nil {
		log.Printf("calibration: %v", err)
	}
}
