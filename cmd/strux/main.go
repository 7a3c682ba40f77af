// Command strux inspects hierarchical store files: it prints the group tree,
// lists attributes, and dumps dataset leaves, always through read-only
// sessions.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/hengadev/strux"
)

func main() {
	// A .env file can carry STRUX_* settings; absence is fine.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	switch command {
	case "tree":
		treeCommand(os.Args[2:])
	case "attrs":
		attrsCommand(os.Args[2:])
	case "dataset":
		datasetCommand(os.Args[2:])
	case "version":
		fmt.Println("strux " + strux.Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options] <store>\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nCommands:\n")
	fmt.Fprintf(os.Stderr, "  tree     Print the group tree of a store\n")
	fmt.Fprintf(os.Stderr, "  attrs    Print the attributes of a group\n")
	fmt.Fprintf(os.Stderr, "  dataset  Dump a dataset leaf\n")
	fmt.Fprintf(os.Stderr, "  version  Show version information\n")
	fmt.Fprintf(os.Stderr, "\nRun '%s <command> -h' for help on a specific command.\n", os.Args[0])
}

func openStore(fs *flag.FlagSet, args []string) (*strux.Session, []string) {
	configPath := fs.String("config", "", "Path to a YAML configuration file")
	fs.Parse(args)

	rest := fs.Args()
	if len(rest) < 1 {
		fmt.Fprintln(os.Stderr, "missing store path")
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := strux.LoadConfigFromEnvironment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	if *configPath != "" {
		cfg, err = strux.LoadConfigFromFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
			os.Exit(1)
		}
	}

	sess, err := strux.Open(rest[0], strux.ModeReadOnly, strux.WithConfig(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}
	return sess, rest[1:]
}

func treeCommand(args []string) {
	fs := flag.NewFlagSet("tree", flag.ExitOnError)
	sess, _ := openStore(fs, args)
	defer sess.Close()

	if err := printTree(os.Stdout, sess, "/", 0); err != nil {
		fmt.Fprintf(os.Stderr, "tree failed: %v\n", err)
		os.Exit(1)
	}
}

func attrsCommand(args []string) {
	fs := flag.NewFlagSet("attrs", flag.ExitOnError)
	sess, rest := openStore(fs, args)
	defer sess.Close()

	group := "/"
	if len(rest) > 0 {
		group = rest[0]
	}
	names, err := sess.AttrNames(group)
	if err != nil {
		fmt.Fprintf(os.Stderr, "attrs failed: %v\n", err)
		os.Exit(1)
	}
	for _, name := range names {
		value, err := sess.Attr(group, name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "attrs failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("@%s = %v\n", name, value)
	}
}

func datasetCommand(args []string) {
	fs := flag.NewFlagSet("dataset", flag.ExitOnError)
	head := fs.Int("head", 0, "Print only the first N leading-axis rows")
	sess, rest := openStore(fs, args)
	defer sess.Close()

	if len(rest) < 2 {
		fmt.Fprintln(os.Stderr, "usage: strux dataset <store> <group> <name>")
		os.Exit(1)
	}
	proxy, err := sess.Dataset(rest[0], rest[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "dataset failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("dataset %s\n", proxy.Name())
	fmt.Printf("  tag:   %s\n", proxy.Tag())
	fmt.Printf("  dtype: %s\n", proxy.Dtype())
	fmt.Printf("  shape: %v\n", proxy.Shape())
	for k, v := range proxy.Metadata() {
		if k == "shape" {
			continue
		}
		fmt.Printf("  @%s = %v\n", k, v)
	}

	rows := proxy.Len()
	if *head > 0 && *head < rows {
		rows = *head
	}
	if proxy.NDim() == 0 {
		value, err := proxy.At()
		if err != nil {
			fmt.Fprintf(os.Stderr, "dataset failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("  [] = %v\n", value)
		return
	}
	for i := 0; i < rows; i++ {
		row, err := proxy.Row(i)
		if err != nil {
			fmt.Fprintf(os.Stderr, "dataset failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("  [%d] = %v\n", i, row)
	}
}

func printTree(w *os.File, sess *strux.Session, group string, depth int) error {
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	fmt.Fprintf(w, "%s%s\n", indent, group)

	names, err := sess.GroupNames(group)
	if err != nil {
		return err
	}
	for _, name := range names {
		child := group + "/" + name
		if group == "/" {
			child = "/" + name
		}
		if err := printTree(w, sess, child, depth+1); err != nil {
			return err
		}
	}
	datasets, err := sess.DatasetNames(group)
	if err != nil {
		return err
	}
	for _, name := range datasets {
		fmt.Fprintf(w, "%s  %s (dataset)\n", indent, name)
	}
	return nil
}
