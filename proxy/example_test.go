package proxy_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonwraymond/proxycache/proxy"
	"github.com/jonwraymond/proxycache/proxy/proxytest"
)

func ExampleCache_GetOrCreate() {
	facility := proxytest.NewFacility()
	c, err := proxy.New[proxytest.Loader, proxytest.ProxyType](facility)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	loader := proxytest.NewLoader("plugins", nil)
	reader := loader.MustDefine(proxytest.NewContract("Reader", "Read"))
	closer := loader.MustDefine(proxytest.NewContract("Closer", "Close"))

	ctx := context.Background()
	first, _ := c.GetOrCreate(ctx, loader, proxytest.Capabilities(reader, closer))
	second, _ := c.GetOrCreate(ctx, loader, proxytest.Capabilities(reader, closer))

	fmt.Println(first)
	fmt.Println("same artifact:", first == second)
	fmt.Println("generations:", facility.Generations())
	// Output:
	// $Proxy1(Reader, Closer)
	// same artifact: true
	// generations: 1
}

func ExampleCache_Instantiate() {
	c, _ := proxy.New[proxytest.Loader, proxytest.ProxyType](proxytest.NewFacility())
	loader := proxytest.NewLoader("plugins", nil)
	greeter := loader.MustDefine(proxytest.NewContract("Greeter", "Greet"))

	handler := proxy.HandlerFunc(func(_ context.Context, method string, args []any) (any, error) {
		return fmt.Sprintf("%s(%v)", method, args[0]), nil
	})

	inst, err := c.Instantiate(context.Background(), loader, proxytest.Capabilities(greeter), handler)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	out, _ := inst.(*proxytest.Proxy).Call(context.Background(), "Greet", "world")
	fmt.Println(out)

	_, err = c.Instantiate(context.Background(), loader, proxytest.Capabilities(greeter), nil)
	fmt.Println(errors.Is(err, proxy.ErrNullArgument))
	// Output:
	// Greet(world)
	// true
}
