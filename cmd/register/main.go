// Command register walks a customer through the two-step registration form
// in the terminal and submits it to the registration server.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/ahmetcoskunkizilkaya/customer-onboarding/internal/client"
	"github.com/ahmetcoskunkizilkaya/customer-onboarding/internal/device"
	"github.com/ahmetcoskunkizilkaya/customer-onboarding/internal/dto"
	"github.com/ahmetcoskunkizilkaya/customer-onboarding/internal/form"
)

var version = "dev"

func main() {
	defaultServer := os.Getenv("REGISTRATION_SERVER_URL")
	if defaultServer == "" {
		defaultServer = "http://localhost:8080"
	}

	var (
		server        = flag.String("server", defaultServer, "registration server base URL")
		timeout       = flag.Duration("timeout", 15*time.Second, "submission timeout")
		locateTimeout = flag.Duration("locate-timeout", 10*time.Second, "location request timeout")
		accuracy      = flag.Float64("accuracy", 10, "accuracy in meters reported for -lat/-lon")
		verbose       = flag.Bool("v", false, "debug logging")
		lat, lon      *float64
	)
	flag.Func("lat", "latitude offered when choosing \"use my location\"", floatFlag(&lat))
	flag.Func("lon", "longitude offered when choosing \"use my location\"", floatFlag(&lon))
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	locator := device.StaticLocationProvider{}
	if lat != nil && lon != nil {
		locator.Sample = &device.LocationSample{Latitude: *lat, Longitude: *lon, AccuracyMeters: *accuracy}
	}

	f := form.New(
		client.New(*server, *timeout),
		device.SystemEnvironment{Version: version},
		locator,
		form.WithLocationTimeout(*locateTimeout),
		form.WithLogger(logger),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r := &runner{form: f, in: bufio.NewReader(os.Stdin), out: os.Stdout}
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		r.readSecret = func() (string, error) {
			b, err := term.ReadPassword(fd)
			return string(b), err
		}
	}
	if err := r.run(ctx); err != nil && !errors.Is(err, errQuit) {
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(os.Stdout)
			return
		}
		slog.Error("register failed", "error", err)
		os.Exit(1)
	}
}

func floatFlag(dst **float64) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*dst = &v
		return nil
	}
}

var errQuit = errors.New("quit")

type runner struct {
	form *form.Form
	in   *bufio.Reader
	out  io.Writer

	// readSecret reads one line without echo; nil when stdin is not a terminal.
	readSecret func() (string, error)

	// rejected holds the last identity that failed validation so it can be
	// offered again as defaults.
	rejected *form.Identity
}

func (r *runner) run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var err error
		switch st := r.form.State().(type) {
		case form.IdentityStep:
			err = r.identity(st)
		case form.LocationStep:
			err = r.location(ctx, st)
		case form.Failed:
			err = r.failed(st)
		case form.Succeeded:
			err = r.succeeded(st)
		default:
			err = fmt.Errorf("unexpected form state %T", st)
		}
		if err != nil {
			return err
		}
	}
}

func (r *runner) header(title string) {
	fmt.Fprintf(r.out, "\n== %s  [%d%%] ==\n", title, r.form.Progress())
}

func (r *runner) identity(st form.IdentityStep) error {
	r.header("Step 1 of 2: Personal details")
	printErrors(r.out, st.Errors)

	prev := st.Draft.Identity
	if len(st.Errors) > 0 && r.rejected != nil {
		prev = *r.rejected
	}
	var in form.Identity
	var err error

	fields := []struct {
		label string
		dst   *string
		prev  string
	}{
		{"Full Name", &in.FullName, prev.FullName},
		{"Email", &in.Email, prev.Email},
		{"Phone Number (10 digits)", &in.PhoneNumber, prev.PhoneNumber},
		{"Gender (Male/Female/Other)", &in.Gender, prev.Gender},
		{"Date of Birth (YYYY-MM-DD)", &in.DateOfBirth, prev.DateOfBirth},
		{"Address", &in.Address, prev.Address},
	}
	for _, fd := range fields {
		if *fd.dst, err = r.ask(fd.label, fd.prev); err != nil {
			return err
		}
	}
	fmt.Fprintf(r.out, "  (%d characters)\n", in.AddressLength())

	if in.Password, err = r.askSecret("Password", prev.Password); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "  strength: %s\n", form.PasswordStrength(in.Password))
	if in.ConfirmPassword, err = r.askSecret("Confirm Password", prev.ConfirmPassword); err != nil {
		return err
	}

	err = r.form.Next(in)
	var verr *form.ValidationError
	if errors.As(err, &verr) {
		r.rejected = &in
		return nil
	}
	r.rejected = nil
	return err
}

func (r *runner) location(ctx context.Context, st form.LocationStep) error {
	r.header("Step 2 of 2: Location (optional)")
	if st.LocationErr != nil {
		fmt.Fprintf(r.out, "  ! could not get your location: %v\n", st.LocationErr)
	}
	if st.Sample != nil {
		fmt.Fprintf(r.out, "  location: %.6f, %.6f (±%.0fm)\n", st.Sample.Latitude, st.Sample.Longitude, st.Sample.AccuracyMeters)
		if st.Sample.LowConfidence() {
			fmt.Fprintln(r.out, "  note: accuracy is low, the position may be off")
		}
		fmt.Fprintf(r.out, "  map: %s\n", st.Sample.MapURL())
	}

	choice, err := r.ask("[l]ocate me, [s]kip, [c]omplete, [b]ack, [q]uit", "c")
	if err != nil {
		return err
	}

	switch strings.ToLower(choice) {
	case "l", "locate":
		fmt.Fprintln(r.out, "  locating...")
		_, err = r.form.UseMyLocation(ctx)
		var locErr *device.LocationError
		if errors.As(err, &locErr) {
			return nil
		}
		return err
	case "s", "skip":
		fmt.Fprintln(r.out, "  submitting...")
		_, err = r.form.Skip(ctx)
		return submitErr(err)
	case "c", "complete":
		fmt.Fprintln(r.out, "  submitting...")
		_, err = r.form.Complete(ctx)
		return submitErr(err)
	case "b", "back":
		return r.form.Back()
	case "q", "quit":
		return errQuit
	default:
		fmt.Fprintf(r.out, "  unknown choice %q\n", choice)
		return nil
	}
}

// submitErr drops errors the form already recorded in its Failed state.
func submitErr(err error) error {
	if err == nil {
		return nil
	}
	var netErr *client.NetworkError
	var statusErr *client.StatusError
	if errors.As(err, &netErr) || errors.As(err, &statusErr) || errors.Is(err, client.ErrMalformedResponse) ||
		errors.Is(err, form.ErrEmptyRecord) {
		return nil
	}
	var verr *form.ValidationError
	if errors.As(err, &verr) {
		return nil
	}
	return err
}

func (r *runner) failed(st form.Failed) error {
	fmt.Fprintln(r.out, "\n!! Registration failed. Please try again.")
	slog.Debug("submission error", "error", st.Err)

	choice, err := r.ask("[r]etry, [b]ack to details, [q]uit", "r")
	if err != nil {
		return err
	}
	switch strings.ToLower(choice) {
	case "b", "back":
		return r.form.Back()
	case "q", "quit":
		return errQuit
	default:
		return r.form.Retry()
	}
}

func (r *runner) succeeded(st form.Succeeded) error {
	r.header("Registration successful")
	fmt.Fprintf(r.out, "  Name:  %s\n  Email: %s\n  ID:    %s\n", st.Record.Name, st.Record.Email, st.Record.UID)
	var info dto.DeviceInfo
	if json.Unmarshal(st.Record.DeviceInfo, &info) == nil && info.UserAgent != "" {
		fmt.Fprintf(r.out, "  Device: %s\n", device.Describe(info.UserAgent))
	}

	again, err := r.ask("Register another customer? [y/N]", "n")
	if err != nil {
		return err
	}
	if strings.HasPrefix(strings.ToLower(again), "y") {
		return r.form.Acknowledge()
	}
	return errQuit
}

// ask prints label and returns the trimmed answer, or def on an empty line.
func (r *runner) ask(label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(r.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(r.out, "%s: ", label)
	}
	return r.readLine(def)
}

// askSecret is ask for passwords: the previous value is never printed and,
// on a terminal, the typed input is not echoed.
func (r *runner) askSecret(label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(r.out, "%s [unchanged]: ", label)
	} else {
		fmt.Fprintf(r.out, "%s: ", label)
	}
	if r.readSecret == nil {
		return r.readLine(def)
	}

	line, err := r.readSecret()
	fmt.Fprintln(r.out)
	if err != nil {
		return "", err
	}
	if line = strings.TrimSpace(line); line == "" {
		return def, nil
	}
	return line, nil
}

func (r *runner) readLine(def string) (string, error) {
	line, err := r.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return def, nil
	}
	return line, nil
}

func printErrors(w io.Writer, fields map[string]string) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  ! %s: %s\n", k, fields[k])
	}
}
