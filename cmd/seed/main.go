// Command seed populates a development database with wallets, a static
// asset grant file, and sample gated content.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"

	"github.com/walletgate/walletgate/internal/assets"
	"github.com/walletgate/walletgate/internal/engine"
	"github.com/walletgate/walletgate/internal/model"
	"github.com/walletgate/walletgate/internal/store/sqlite"
	"github.com/walletgate/walletgate/internal/wallet"
)

var drops = []struct {
	token       string
	title       string
	description string
}{
	{"genesis-pass", "Genesis Pass Lounge", "Early supporter area"},
	{"builder-badge", "Builder Updates", "Progress notes for badge holders"},
	{"collector-001", "Collector Previews", "Unreleased pieces, holders only"},
}

var postSeeds = []struct {
	title string
	text  string
}{
	{"Welcome aboard", "Glad you made it past the gate."},
	{"Roadmap notes", "Shipping the next drop in two weeks."},
	{"Behind the scenes", "A look at how this collection came together."},
}

var commentSeeds = []string{
	"First!",
	"Great to see this gated properly.",
	"Looking forward to the next drop.",
	"Can holders vote on the roadmap?",
}

func main() {
	dbPath := flag.String("db", "walletgate.db", "sqlite database path")
	assetsFile := flag.String("assets", "walletgate-assets.json", "static asset grants output file")
	wallets := flag.Int("wallets", 3, "number of wallets to generate")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	st, err := sqlite.Open(*dbPath)
	if err != nil {
		log.Error("open store", "err", err)
		os.Exit(1)
	}
	defer st.Close()

	eng := engine.New(st, log)
	resolver := assets.NewStatic()
	ctx := context.Background()

	type seededWallet struct {
		address string
		key     string
		held    []string
	}
	var seeded []seededWallet
	for i := 0; i < *wallets; i++ {
		key, err := wallet.NewKey()
		if err != nil {
			log.Error("generate key", "err", err)
			os.Exit(1)
		}
		address := wallet.AddressOf(key.PubKey())
		// Every wallet gets the drop matching its index plus the genesis pass.
		held := []string{drops[0].token}
		if i > 0 {
			held = append(held, drops[i%len(drops)].token)
		}
		for _, token := range held {
			resolver.Grant(address, token)
		}
		seeded = append(seeded, seededWallet{
			address: address,
			key:     hex.EncodeToString(key.Serialize()),
			held:    held,
		})
		log.Info("wallet generated", "address", address, "assets", held)
	}

	grants := make(map[string][]string, len(seeded))
	for _, w := range seeded {
		grants[w.address] = w.held
	}
	raw, _ := json.MarshalIndent(grants, "", "  ")
	if err := os.WriteFile(*assetsFile, raw, 0o644); err != nil {
		log.Error("write assets file", "err", err)
		os.Exit(1)
	}

	made := 0
	for i, drop := range drops {
		owner := seeded[i%len(seeded)]
		identity := model.Identity{Address: owner.address, Assets: owner.held}
		if !identity.Owns(drop.token) {
			continue
		}
		content, err := eng.CreateContent(ctx, identity, engine.CreateContentInput{
			Title:       drop.title,
			Description: drop.description,
			Token:       drop.token,
		})
		if err != nil {
			log.Error("seed content", "token", drop.token, "err", err)
			continue
		}
		made++

		for _, ps := range postSeeds[:1+rand.Intn(len(postSeeds))] {
			post, err := eng.CreatePost(ctx, identity, engine.CreatePostInput{
				ContentID: content.ID.String(),
				Title:     ps.title,
				Text:      ps.text,
			})
			if err != nil {
				log.Error("seed post", "err", err)
				continue
			}
			for _, text := range commentSeeds[:1+rand.Intn(len(commentSeeds))] {
				commenter := seeded[rand.Intn(len(seeded))]
				_, err := eng.CreateComment(ctx, model.Identity{Address: commenter.address}, engine.CreateCommentInput{
					PostID:  post.ID.String(),
					Comment: text,
				})
				if err != nil {
					log.Error("seed comment", "err", err)
				}
			}
		}
	}

	fmt.Printf("Seeded %d content records into %s\n", made, *dbPath)
	fmt.Printf("Asset grants written to %s\n\n", *assetsFile)
	fmt.Println("Wallet keys (import with the CLI to sign in):")
	for _, w := range seeded {
		fmt.Printf("  %s  key=%s\n", w.address, w.key)
	}
}
