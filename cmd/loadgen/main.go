package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

type orderRequest struct {
	MemberID   string `json:"member_id"`
	ProductKey string `json:"product_key"`
	Quantity   int    `json:"quantity"`
	Strategy   string `json:"strategy"`
}

type orderResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	OrderID   string `json:"order_id"`
	Remaining int    `json:"remaining"`
	Queued    bool   `json:"queued"`
}

func main() {
	addr := flag.String("addr", "http://localhost:8080", "server address")
	productKey := flag.String("product", "iphone-15", "product key")
	strategy := flag.String("strategy", "queued", "decrement strategy")
	total := flag.Int("n", 50, "total requests")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}

	var successCount atomic.Int32
	var soldOutCount atomic.Int32
	var failCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *total; i++ {
		wg.Add(1)
		go func(memberID int) {
			defer wg.Done()

			body, _ := json.Marshal(orderRequest{
				MemberID:   fmt.Sprintf("member-%d", memberID),
				ProductKey: *productKey,
				Quantity:   1,
				Strategy:   *strategy,
			})

			resp, err := client.Post(*addr+"/api/orders", "application/json", bytes.NewReader(body))
			if err != nil {
				failCount.Add(1)
				return
			}
			defer resp.Body.Close()

			var result orderResponse
			if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
				failCount.Add(1)
				return
			}

			switch {
			case result.Success:
				successCount.Add(1)
			case resp.StatusCode == http.StatusGone:
				soldOutCount.Add(1)
			default:
				failCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	fmt.Println("========== LOAD TEST RESULTS ==========")
	fmt.Printf("Strategy:         %s\n", *strategy)
	fmt.Printf("Total Requests:   %d\n", *total)
	fmt.Printf("Successful:       %d\n", successCount.Load())
	fmt.Printf("Sold Out:         %d\n", soldOutCount.Load())
	fmt.Printf("Failed:           %d\n", failCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("=======================================")

	if failCount.Load() > 0 {
		log.Printf("WARN: %d requests failed outside business rules", failCount.Load())
	}
}
