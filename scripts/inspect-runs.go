//go:build ignore

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

func main() {
	projectID := flag.String("project", os.Getenv("GCP_PROJECT_ID"), "GCP project ID")
	collection := flag.String("collection", "schedule_runs", "Firestore collection name")
	failedOnly := flag.Bool("failed", false, "Only show failed runs")
	limit := flag.Int("limit", 10, "Max documents to return (0 for all)")
	countOnly := flag.Bool("count", false, "Only show failure counts per site")
	flag.Parse()

	ctx := context.Background()
	client, err := firestore.NewClient(ctx, *projectID)
	if err != nil {
		log.Fatalf("Failed to create Firestore client: %v", err)
	}
	defer client.Close()

	coll := client.Collection(*collection)

	if *countOnly {
		showFailureCounts(ctx, coll)
		return
	}

	query := coll.OrderBy("started_at", firestore.Desc)
	if *failedOnly {
		query = coll.Where("failed", "==", true).OrderBy("started_at", firestore.Desc)
	}
	if *limit > 0 {
		query = query.Limit(*limit)
	}

	iter := query.Documents(ctx)
	count := 0
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			log.Fatalf("Error iterating documents: %v", err)
		}

		jsonData, _ := json.MarshalIndent(doc.Data(), "", "  ")
		fmt.Printf("--- Run: %s ---\n%s\n\n", doc.Ref.ID, string(jsonData))
		count++
	}

	fmt.Printf("Total runs shown: %d\n", count)
}

func showFailureCounts(ctx context.Context, coll *firestore.CollectionRef) {
	failures := make(map[string]int)
	runs := 0

	iter := coll.Documents(ctx)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			log.Fatalf("Error iterating documents: %v", err)
		}
		runs++

		sites, _ := doc.Data()["sites"].([]interface{})
		for _, raw := range sites {
			site, _ := raw.(map[string]interface{})
			if _, failed := site["error"]; failed {
				name, _ := site["name"].(string)
				failures[name]++
			}
		}
	}

	fmt.Printf("Failures per site over %d runs:\n", runs)
	fmt.Println("--------------------")
	for name, count := range failures {
		fmt.Printf("%-30s %d\n", name, count)
	}
}
