package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"reflect"

	"go.uber.org/zap"

	"github.com/Konsultn-Engineering/dynreflect"
	"github.com/Konsultn-Engineering/dynreflect/config"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to YAML config file")
		warmup     = flag.Bool("warmup", false, "Run warmup before resolving")
		stats      = flag.Bool("stats", false, "Print cache statistics as JSON")
	)
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: dynprobe [-config file.yaml] [-warmup] [-stats] [type name...]")
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(os.Stdout, *configFile, *warmup, *stats, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(w io.Writer, configFile string, warmup, stats bool, names []string) error {
	cfg := config.Default()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if warmup {
		cfg.Warmup = true
	}

	log, err := cfg.NewLogger()
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	c := dynreflect.New(dynreflect.WithConfig(cfg), dynreflect.WithLogger(log))
	log.Debug("cache ready", zap.String("default_namespace", cfg.DefaultNamespace))

	if len(names) == 0 {
		names = []string{dynreflect.ProbeTypeName}
	}
	for _, name := range names {
		describe(w, c, name)
	}

	if stats {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(c.Stats()); err != nil {
			return fmt.Errorf("encode stats: %w", err)
		}
	}
	return nil
}

// describe prints what the cache knows about a type name.
func describe(w io.Writer, c *dynreflect.Cache, name string) {
	h, ok := c.Resolve(name)
	if !ok {
		fmt.Fprintf(w, "%s: not found\n", name)
		return
	}

	t := h.Type()
	fmt.Fprintf(w, "Type: %s (%s)\n", h.Name(), t)
	fmt.Fprintf(w, "Module: %s\n", h.Module())
	for _, a := range c.GetAttributes(c.TypeTarget(h), true) {
		fmt.Fprintf(w, "Annotation: %+v\n", a)
	}

	if t.Kind() == reflect.Struct {
		fmt.Fprintf(w, "\nFields:\n")
		for i := 0; i < t.NumField(); i++ {
			m, ok := c.GetField(h, t.Field(i).Name, dynreflect.ScopeAll)
			if !ok {
				continue
			}
			visibility := "public"
			if !m.Exported {
				visibility = "non-public"
			}
			fmt.Fprintf(w, "  %s %s [%s]", m.Name, m.Type, visibility)
			if n := len(c.GetAttributes(m, true)); n > 0 {
				fmt.Fprintf(w, " %d annotation(s)", n)
			}
			fmt.Fprintln(w)
		}
	}

	mset := reflect.PointerTo(t)
	if t.Kind() == reflect.Interface {
		mset = t
	}
	if mset.NumMethod() > 0 {
		fmt.Fprintf(w, "\nMethods:\n")
		for i := 0; i < mset.NumMethod(); i++ {
			m, ok := c.GetMethod(h, mset.Method(i).Name, dynreflect.AnySig, dynreflect.ScopePublic|dynreflect.ScopeInstance)
			if ok {
				fmt.Fprintf(w, "  %s\n", m)
			}
		}
	}

	if ctors := h.Constructors(); len(ctors) > 0 {
		fmt.Fprintf(w, "\nConstructors:\n")
		for _, fn := range ctors {
			fmt.Fprintf(w, "  %s\n", fn.Type())
		}
	}

	if statics := h.StaticNames(); len(statics) > 0 {
		fmt.Fprintf(w, "\nStatics:\n")
		for _, s := range statics {
			for _, fn := range h.Statics(s) {
				fmt.Fprintf(w, "  %s %s\n", s, fn.Type())
			}
		}
	}
	fmt.Fprintln(w)
}
