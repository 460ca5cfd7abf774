package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"kvsim/internal/bench"
	"kvsim/internal/cluster"
	"kvsim/internal/config"
	"kvsim/internal/event"
)

func main() {
	var (
		interactive = flag.Bool("interactive", false, "run the interactive REPL instead of the automated demo")
		configPath  = flag.String("config", "", "path to a YAML config file")
		dataDir     = flag.String("data-dir", "", "override the data directory")
	)
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logrus.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	opts := cfg.ClusterOptions()
	opts.Sink = event.NewLogSink(logrus.StandardLogger())
	opts.Logger = logrus.StandardLogger()

	c := cluster.New(opts)
	defer c.Close()

	for _, id := range cfg.Nodes {
		if err := c.AddNode(id); err != nil {
			logrus.Fatalf("add node %s: %v", id, err)
		}
	}

	if *interactive {
		runREPL(c)
		return
	}
	runDemo(c)
}

// runDemo walks through the store's features against a live cluster.
func runDemo(c *cluster.Cluster) {
	fmt.Println("=== Distributed Key-Value Store Demo ===")
	fmt.Printf("Cluster: %d nodes, replication factor %d\n\n", c.Size(), c.ReplicationFactor())

	fmt.Println("-- Basic operations")
	pairs := map[string]string{
		"user:1001":      "Alice Johnson",
		"user:1002":      "Bob Smith",
		"user:1003":      "Charlie Brown",
		"session:abc123": "active",
		"config:timeout": "30s",
	}
	for key, value := range pairs {
		if err := c.Put(key, []byte(value)); err != nil {
			logrus.Fatalf("put %s: %v", key, err)
		}
	}
	for _, key := range []string{"user:1001", "user:1002", "session:abc123"} {
		value, _ := c.Get(key)
		fmt.Printf("%s = %s\n", key, value)
	}

	fmt.Println("\n-- Overwrite consistency")
	c.Put("test:consistency", []byte("version_1"))
	c.Put("test:consistency", []byte("version_2"))
	value, _ := c.Get("test:consistency")
	fmt.Printf("test:consistency = %s\n", value)

	fmt.Println("\n-- Fault tolerance")
	value, _ = c.Get("user:1001")
	fmt.Printf("before removal: user:1001 = %s\n", value)
	if nodes := c.Nodes(); len(nodes) > 1 {
		if err := c.RemoveNode(nodes[0]); err != nil {
			logrus.Fatalf("remove node: %v", err)
		}
	}
	value, found := c.Get("user:1001")
	if !found {
		logrus.Fatal("user:1001 lost after node removal")
	}
	fmt.Printf("after removal:  user:1001 = %s\n", value)

	fmt.Println("\n-- Benchmark")
	printBenchmark(c, 2000)

	fmt.Println("\n-- Concurrent access (4 workers x 50 ops)")
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				key := fmt.Sprintf("thread%d:key%d", worker, i)
				value := fmt.Sprintf("thread%d:value%d", worker, i)
				if err := c.Put(key, []byte(value)); err != nil {
					logrus.Errorf("put %s: %v", key, err)
					return
				}
				if got, ok := c.Get(key); !ok || string(got) != value {
					logrus.Errorf("read-your-write violated for %s", key)
					return
				}
			}
		}(w)
	}
	wg.Wait()
	fmt.Println("200 concurrent operations completed")

	fmt.Println("\n-- Distribution")
	printStats(c)
}

// runREPL reads commands from stdin until exit or EOF.
func runREPL(c *cluster.Cluster) {
	fmt.Println("Commands: put <key> <value>, get <key>, del <key>, nodes, stats, addnode <id>, removenode <id>, benchmark, exit")
	fmt.Println("Values with spaces can be double-quoted: put user:1001 \"Alice Johnson\"")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("kvsim> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		cmd, rest, _ := strings.Cut(line, " ")
		switch cmd {
		case "put":
			key, raw, ok := strings.Cut(strings.TrimSpace(rest), " ")
			if !ok || key == "" {
				fmt.Println("usage: put <key> <value>")
				continue
			}
			if err := c.Put(key, []byte(unquote(raw))); err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			fmt.Printf("stored %s\n", key)

		case "get":
			key := strings.TrimSpace(rest)
			if key == "" {
				fmt.Println("usage: get <key>")
				continue
			}
			value, found := c.Get(key)
			if !found {
				fmt.Printf("key not found: %s\n", key)
				continue
			}
			fmt.Printf("%s = %s\n", key, value)

		case "del":
			key := strings.TrimSpace(rest)
			if key == "" {
				fmt.Println("usage: del <key>")
				continue
			}
			existed, err := c.Remove(key)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			if existed {
				fmt.Printf("deleted %s\n", key)
			} else {
				fmt.Printf("not found: %s\n", key)
			}

		case "nodes":
			for _, id := range c.Nodes() {
				fmt.Printf("- %s\n", id)
			}

		case "stats":
			printStats(c)

		case "addnode":
			id := strings.TrimSpace(rest)
			if id == "" {
				fmt.Println("usage: addnode <id>")
				continue
			}
			if err := c.AddNode(id); err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			fmt.Printf("added node %s\n", id)

		case "removenode":
			id := strings.TrimSpace(rest)
			if id == "" {
				fmt.Println("usage: removenode <id>")
				continue
			}
			if err := c.RemoveNode(id); err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			fmt.Printf("removed node %s\n", id)

		case "benchmark":
			printBenchmark(c, 1000)

		case "exit":
			return

		default:
			fmt.Println("unknown command; available: put, get, del, nodes, stats, addnode, removenode, benchmark, exit")
		}
	}
}

// unquote strips one pair of surrounding double quotes, preserving inner
// spaces.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}

func printStats(c *cluster.Cluster) {
	for _, st := range c.Stats() {
		fmt.Printf("- %-10s %6d keys  %5.1f%%\n", st.ID, st.Keys, st.Percent)
	}
}

func printBenchmark(c *cluster.Cluster, ops int) {
	res, err := bench.Run(c, ops)
	if err != nil {
		fmt.Printf("benchmark failed: %v\n", err)
		return
	}
	fmt.Printf("writes: %d in %v (%.0f ops/sec)\n", res.Operations, res.WriteDuration, res.WriteThroughput())
	fmt.Printf("reads:  %d in %v (%.0f ops/sec)\n", res.Operations, res.ReadDuration, res.ReadThroughput())
}
