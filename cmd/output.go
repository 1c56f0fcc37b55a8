package cmd

import (
	"fmt"
	"strings"
)

// ANSI color codes for terminal output
const (
	ColorReset  = "\033[0m"
	ColorBold   = "\033[1m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorPurple = "\033[35m"
	ColorCyan   = "\033[36m"
	ColorWhite  = "\033[37m"
)

func printHeader(title, url string) {
	fmt.Printf("%s%s%s%s: %s%s%s\n", ColorBold, ColorBlue, title, ColorReset, ColorCyan, url, ColorReset)
	fmt.Printf("%s%s%s\n\n", ColorBlue, strings.Repeat("═", 80), ColorReset)
}

func printStep(num int, title string) {
	fmt.Printf("%s%s%d%s %s%s%s\n", ColorBold, ColorPurple, num, ColorReset, ColorWhite, title, ColorReset)
}

func printSuccess(format string, args ...any) {
	fmt.Printf("   %s✓%s %s\n", ColorGreen, ColorReset, fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	fmt.Printf("   %s⚠%s %s\n", ColorYellow, ColorReset, fmt.Sprintf(format, args...))
}

func printError(format string, args ...any) {
	fmt.Printf("   %s✗%s %s\n", ColorRed, ColorReset, fmt.Sprintf(format, args...))
}

func printInfo(format string, args ...any) {
	fmt.Printf("   %s•%s %s\n", ColorCyan, ColorReset, fmt.Sprintf(format, args...))
}

func printKeyValue(key, value string) {
	fmt.Printf("   %s%-24s%s %s\n", ColorCyan, key+":", ColorReset, value)
}
