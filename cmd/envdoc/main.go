package main

import (
	"fmt"
	"os"

	"travelsec/internal/config"
	"travelsec/internal/secretstore"
)

func main() {
	fmt.Println("# travelsec Environment Variables")
	fmt.Println()
	fmt.Println("Environment variables override values from the configuration file.")
	fmt.Println()
	fmt.Println("## Available Environment Variables")
	fmt.Println()

	cfg := &config.Config{}
	for _, example := range config.EnvExample(cfg) {
		fmt.Printf("- `%s`\n", example)
	}

	fmt.Println()
	fmt.Println("## Legacy Variables")
	fmt.Println()
	fmt.Println("Read when the matching setting is empty.")
	fmt.Println()
	for _, name := range secretstore.LegacyVariables {
		fmt.Printf("- `%s`\n", name)
	}
	fmt.Println("- `REDIS_URL`")

	fmt.Println()
	fmt.Println("## Examples")
	fmt.Println()
	fmt.Println("```bash")
	fmt.Println("# Override HTTP port")
	fmt.Println("export TRAVELSEC_SERVER_PORT=9090")
	fmt.Println()
	fmt.Println("# Shared rate limits and replay checks")
	fmt.Println("export TRAVELSEC_REDIS_URL=redis://cache:6379/0")
	fmt.Println()
	fmt.Println("# Automation secrets, comma separated for rotation")
	fmt.Println("export TRAVELSEC_SECURITY_CRONSECRETS=current,previous")
	fmt.Println()
	fmt.Println("./secgate -config travelsec.yaml")
	fmt.Println("```")

	os.Exit(0)
}
