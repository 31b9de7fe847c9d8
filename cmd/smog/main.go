package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/kristofer/smog/pkg/bytecode"
	"github.com/kristofer/smog/pkg/compiler"
	"github.com/kristofer/smog/pkg/gc"
	"github.com/kristofer/smog/pkg/vm"
)

const version = "0.5.0"

// exit codes per spec §6: 65 on compile error, 70 on runtime error, 0
// otherwise.
const (
	exitOK          = 0
	exitCompileErr  = 65
	exitRuntimeErr  = 70
)

func main() {
	app := cli.NewApp()
	app.Name = "smog"
	app.Usage = "a bytecode VM for a small class-based scripting language"
	app.Version = version
	app.Flags = []cli.Flag{
		cli.BoolFlag{Name: "stress-gc", Usage: "run a full GC cycle before every allocation"},
		cli.BoolFlag{Name: "no-color", Usage: "disable colored output even on a tty"},
	}
	app.Action = func(c *cli.Context) error {
		if c.NArg() > 0 {
			os.Exit(runFile(c.Args().First(), c.Bool("stress-gc")))
		}
		runREPL(c.Bool("stress-gc"), !c.Bool("no-color"))
		return nil
	}
	app.Commands = []cli.Command{
		{
			Name:      "run",
			Usage:     "run a .smog or .sg file",
			ArgsUsage: "<file>",
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					return cli.NewExitError("Error: no file specified", exitCompileErr)
				}
				os.Exit(runFile(c.Args().First(), c.GlobalBool("stress-gc")))
				return nil
			},
		},
		{
			Name:      "repl",
			Usage:     "start the interactive REPL",
			ArgsUsage: " ",
			Action: func(c *cli.Context) error {
				runREPL(c.GlobalBool("stress-gc"), !c.GlobalBool("no-color"))
				return nil
			},
		},
		{
			Name:      "compile",
			Usage:     "compile a .smog source file to .sg bytecode",
			ArgsUsage: "<input.smog> [output.sg]",
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					return cli.NewExitError("Error: no file specified", exitCompileErr)
				}
				out := ""
				if c.NArg() >= 2 {
					out = c.Args().Get(1)
				}
				os.Exit(compileFile(c.Args().First(), out))
				return nil
			},
		},
		{
			Name:      "disassemble",
			Aliases:   []string{"disasm"},
			Usage:     "disassemble a .sg bytecode file",
			ArgsUsage: "<file.sg>",
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					return cli.NewExitError("Error: no file specified", exitCompileErr)
				}
				os.Exit(disassembleFile(c.Args().First()))
				return nil
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runFile runs a .smog source file or a pre-compiled .sg bytecode file,
// detected by extension, and returns the process exit code.
func runFile(filename string, stress bool) int {
	if filepath.Ext(filename) == ".sg" {
		return runBytecodeFile(filename, stress)
	}
	return runSourceFile(filename, stress)
}

func runSourceFile(filename string, stress bool) int {
	data, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		return exitCompileErr
	}

	g := gc.New(gc.WithStress(stress))
	v := vm.New(g, os.Stdout)
	_, err = v.Interpret(string(data))
	return exitForError(err)
}

// runBytecodeFile loads a .sg chunk and runs it directly, skipping lexing,
// parsing, and compilation — the fast path `cmd smog compile` enables.
func runBytecodeFile(filename string, stress bool) int {
	file, err := os.Open(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		return exitCompileErr
	}
	defer file.Close()

	chunk, err := bytecode.ReadChunk(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading bytecode: %v\n", err)
		return exitCompileErr
	}

	g := gc.New(gc.WithStress(stress))
	v := vm.New(g, os.Stdout)
	_, err = v.RunChunk(chunk, filepath.Base(filename))
	return exitForError(err)
}

func exitForError(err error) int {
	if err == nil {
		return exitOK
	}
	if _, ok := err.(*compiler.CompileError); ok {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitCompileErr
	}
	fmt.Fprintf(os.Stderr, "%v\n", err)
	return exitRuntimeErr
}

// compileFile compiles a .smog source file to a .sg bytecode file, for
// distributing or loading programs without re-parsing every run.
func compileFile(inputFile, outputFile string) int {
	if outputFile == "" {
		if filepath.Ext(inputFile) == ".smog" {
			outputFile = strings.TrimSuffix(inputFile, ".smog") + ".sg"
		} else {
			outputFile = inputFile + ".sg"
		}
	}

	data, err := os.ReadFile(inputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		return exitCompileErr
	}

	g := gc.New()
	comp := compiler.New(g)
	fn, err := comp.Compile(string(data))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Compile error: %v\n", err)
		return exitCompileErr
	}

	outFile, err := os.Create(outputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output file: %v\n", err)
		return exitCompileErr
	}
	defer outFile.Close()

	chunk, ok := fn.Chunk.(*bytecode.Chunk)
	if !ok {
		fmt.Fprintln(os.Stderr, "Error: compiled function has no chunk")
		return exitCompileErr
	}
	if _, err := chunk.WriteTo(outFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing bytecode: %v\n", err)
		return exitCompileErr
	}

	fmt.Printf("Compiled %s -> %s\n", inputFile, outputFile)
	return exitOK
}

// disassembleFile prints a human-readable listing of a .sg bytecode file.
func disassembleFile(filename string) int {
	file, err := os.Open(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		return exitCompileErr
	}
	defer file.Close()

	chunk, err := bytecode.ReadChunk(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading bytecode: %v\n", err)
		return exitCompileErr
	}

	fmt.Print(bytecode.Disassemble(chunk, filename))
	return exitOK
}

// runREPL starts an interactive read-eval-print loop backed by
// github.com/peterh/liner for line editing and history, the way the
// teacher's REPL kept a persistent VM/compiler pair across inputs —
// generalized here to one persistent VM per session (each line is
// compiled fresh, since this compiler has no incremental-compile mode,
// but globals and the VM heap carry over between lines).
func runREPL(stress, useColor bool) {
	if !useColor || (!isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd())) {
		color.NoColor = true
	}

	fmt.Println(color.New(color.Bold).Sprintf("smog %s", version))
	fmt.Println("Type :quit or :exit to leave, :help for help.")

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	historyPath := replHistoryPath()
	if f, err := os.Open(historyPath); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	g := gc.New(gc.WithStress(stress))
	v := vm.New(g, os.Stdout)

	for {
		input, err := line.Prompt("smog> ")
		if err == io.EOF || err == liner.ErrPromptAborted {
			fmt.Println()
			break
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
			break
		}

		trimmed := strings.TrimSpace(input)
		switch trimmed {
		case "":
			continue
		case ":quit", ":exit":
			goto done
		case ":help":
			printREPLHelp()
			continue
		}

		line.AppendHistory(input)
		evalREPL(v, trimmed)
	}

done:
	if f, err := os.Create(historyPath); err == nil {
		line.WriteHistory(f)
		f.Close()
	}
	fmt.Println("Goodbye!")
}

func evalREPL(v *vm.VM, input string) {
	if _, err := v.Interpret(input); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("%v", err))
	}
}

func replHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".smog_history"
	}
	return filepath.Join(home, ".smog_history")
}

func printREPLHelp() {
	fmt.Println("smog REPL help")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  :help     Show this help message")
	fmt.Println("  :quit     Exit the REPL")
	fmt.Println("  :exit     Exit the REPL")
	fmt.Println()
	fmt.Println("Enter any smog statement or expression and press Enter;")
	fmt.Println("declared globals persist across lines in the same session.")
	fmt.Println()
	fmt.Println("  smog> var x = 42;")
	fmt.Println("  smog> print x + 8;")
}
