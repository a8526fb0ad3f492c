package main

import (
	"bufio"
	"bytes"
	"database/sql"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/KeremAR/Microservice/pkg/config"

	_ "github.com/lib/pq"
)

// ANSI
const (
	Reset    = "\033[0m"
	Bold     = "\033[1m"
	Dim      = "\033[2m"
	White    = "\033[97m"
	Black    = "\033[30m"
	Green    = "\033[32m"
	Yellow   = "\033[33m"
	Red      = "\033[31m"
	Cyan     = "\033[36m"
	BgGreen  = "\033[42m"
	BgYellow = "\033[43m"
	BgCyan   = "\033[46m"
)

// session is the operator's state between commands.
type session struct {
	api   *apiClient
	dbs   map[string]*sql.DB
	token string
	email string
}

func newSession() *session {
	s := &session{
		api: newAPIClient(envOr("API_URL", "http://localhost:8080")),
		dbs: map[string]*sql.DB{},
	}
	for _, svc := range []string{"api", "audit", "loadstats"} {
		url := config.LoadForService(strings.ToUpper(svc)).DatabaseURL
		if db, err := sql.Open("postgres", url); err == nil {
			s.dbs[svc] = db
		}
	}
	return s
}

func main() {
	s := newSession()
	clearScreen()
	printBanner()
	s.loop()
}

func (s *session) loop() {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(s.prompt())
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		fields := strings.Fields(input)

		switch fields[0] {
		case "exit", "quit", "q":
			fmt.Printf("\n%s%s  Bye %s\n\n", BgCyan, Black, Reset)
			return
		case "help", "?":
			printHelp()
		case "clear", "cls":
			clearScreen()
			printBanner()

		case "health", "h":
			s.printHealth()
		case "ready":
			s.printReady()
		case "signup":
			s.signup(fields[1:])
		case "login":
			s.login(fields[1:])
		case "logout":
			s.token, s.email = "", ""
			fmt.Printf("  %s[ok] token cleared%s\n", Green, Reset)
		case "me":
			s.me()
		case "sync":
			s.sync()

		case "events":
			s.showEvents()
		case "metrics":
			s.showMetrics()
		case "daily":
			s.showDaily()
		case "profiles":
			s.showProfiles()
		case "keys":
			if len(fields) < 2 {
				fmt.Printf("  %sUsage: keys <audit|loadstats>%s\n", Red, Reset)
				break
			}
			s.showIdempotencyKeys(fields[1])
		case "tables":
			if len(fields) < 2 {
				fmt.Printf("  %sUsage: tables <api|audit|loadstats>%s\n", Red, Reset)
				break
			}
			s.showTables(fields[1])
		case "sql":
			if len(fields) < 3 {
				fmt.Printf("  %sUsage: sql <api|audit|loadstats> <query>%s\n", Red, Reset)
				break
			}
			s.rawSQL(fields[1], strings.TrimSpace(strings.TrimPrefix(input, "sql "+fields[1])))

		case "queues":
			printQueues()
		case "up":
			shellExec("docker", "compose", "up", "-d", "--build")
		case "down":
			shellExec("docker", "compose", "down", "-v")
		case "logs":
			if len(fields) > 1 {
				shellExec("docker", "compose", "logs", "-f", "--tail=50", fields[1])
			} else {
				shellExec("docker", "compose", "logs", "-f", "--tail=30")
			}

		default:
			shellExecRaw(input)
		}

		fmt.Println()
	}
}

func (s *session) prompt() string {
	bg, who := BgYellow, "anonymous"
	if s.token != "" {
		bg, who = BgGreen, s.email
	}
	return fmt.Sprintf("%s%s %s | %s %s\n%s>%s ", bg, Black, s.api.base, who, Reset, Cyan, Reset)
}

func printHelp() {
	fmt.Println()
	fmt.Printf("  %s%sCommands%s\n", Bold, White, Reset)
	fmt.Printf("  %s--- API ---%s\n", Dim, Reset)
	fmt.Printf("  %shealth%s  h            liveness\n", Green, Reset)
	fmt.Printf("  %sready%s                dependency readiness\n", Green, Reset)
	fmt.Printf("  %ssignup%s <email> <password> <name> <surname> [phone]\n", Green, Reset)
	fmt.Printf("  %slogin%s  <email> <password>  stores the token\n", Green, Reset)
	fmt.Printf("  %sme%s                   current profile\n", Green, Reset)
	fmt.Printf("  %ssync%s                 reconcile current profile\n", Green, Reset)
	fmt.Printf("  %slogout%s               forget the token\n", Green, Reset)
	fmt.Println()
	fmt.Printf("  %s--- Data ---%s\n", Dim, Reset)
	fmt.Printf("  %sprofiles%s             last 20 profile rows\n", Green, Reset)
	fmt.Printf("  %sevents%s               audit log (last 20)\n", Green, Reset)
	fmt.Printf("  %smetrics%s              login metrics (with bars)\n", Green, Reset)
	fmt.Printf("  %sdaily%s                daily totals (last 14d)\n", Green, Reset)
	fmt.Printf("  %skeys%s   <db>          idempotency keys\n", Green, Reset)
	fmt.Printf("  %stables%s <db>          list tables\n", Green, Reset)
	fmt.Printf("  %ssql%s    <db> <query>  run a query\n", Green, Reset)
	fmt.Println()
	fmt.Printf("  %s--- Stack ---%s\n", Dim, Reset)
	fmt.Printf("  %squeues%s               rabbitmq queues\n", Green, Reset)
	fmt.Printf("  %sup%s / %sdown%s / %slogs%s [svc]\n", Green, Reset, Green, Reset, Green, Reset)
	fmt.Println()
	fmt.Printf("  %sAnything else is passed to your system shell.%s\n", Dim, Reset)
}

func printBanner() {
	fmt.Println()
	fmt.Printf("  %s%s>> User Service Operator Shell%s\n", Bold, Cyan, Reset)
	fmt.Printf("  %sType 'help' for commands%s\n", Dim, Reset)
	fmt.Println()
}

func printQueues() {
	fmt.Printf("  %s%sRabbitMQ Queues%s\n", Bold, White, Reset)

	output := strings.TrimSpace(runCmd("docker", "compose", "exec", "-T", "rabbitmq",
		"rabbitmqctl", "list_queues", "name", "messages", "consumers", "--quiet"))
	if output == "" {
		fmt.Printf("  %s[-] rabbitmq not reachable%s\n", Dim, Reset)
		return
	}

	fmt.Printf("  %s%-30s %8s %10s%s\n", Dim, "QUEUE", "MSGS", "CONSUMERS", Reset)
	for _, line := range strings.Split(output, "\n") {
		f := strings.Fields(line)
		if len(f) < 3 {
			continue
		}
		color := Green
		if f[1] != "0" {
			color = Yellow
		}
		if strings.HasSuffix(f[0], ".dlq") && f[1] != "0" {
			color = Red
		}
		fmt.Printf("  %-30s %s%8s%s %10s\n", f[0], color, f[1], Reset, f[2])
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func shellExec(name string, args ...string) {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	if err := cmd.Run(); err != nil {
		fmt.Printf("  %s[x] %v%s\n", Red, err, Reset)
	}
}

func shellExecRaw(input string) {
	shell := "sh"
	if _, err := exec.LookPath("bash"); err == nil {
		shell = "bash"
	}
	cmd := exec.Command(shell, "-c", input)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	_ = cmd.Run()
}

func runCmd(name string, args ...string) string {
	cmd := exec.Command(name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	_ = cmd.Run()
	return out.String()
}

func clearScreen() {
	fmt.Print("\033[H\033[2J")
}
