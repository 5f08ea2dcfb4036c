package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	html := `<html><head>
<title>Classic Tee | Example Shop</title>
<meta property="og:title" content="Classic Tee">
<link rel="canonical" href="/products/classic-tee">
</head><body>
<div class="yotpo yotpo-main-widget" data-product-id="tee-42" data-appkey="key-1" data-name="Classic Tee (Navy)"></div>
</body></html>`

	info, err := Extract(html, "https://shop.example.com/products/classic-tee?variant=3")
	require.NoError(t, err)
	assert.Equal(t, "Classic Tee", info.Title)
	assert.Equal(t, "https://shop.example.com/products/classic-tee", info.CanonicalURL)
	assert.Equal(t, "tee-42", info.ProductID)
	assert.Equal(t, "key-1", info.AppKey)
	assert.Equal(t, "Classic Tee (Navy)", info.Name)
}

func TestExtract_Fallbacks(t *testing.T) {
	html := `<html><head><title> Mug </title></head><body>
<div data-yotpo-product-id="mug-7"></div>
<script class="yotpo-widget-loader" data-appkey="key-2"></script>
</body></html>`

	info, err := Extract(html, "https://shop.example.com/mug")
	require.NoError(t, err)
	assert.Equal(t, "Mug", info.Title)
	assert.Equal(t, "Mug", info.Name)
	assert.Equal(t, "mug-7", info.ProductID)
	assert.Equal(t, "key-2", info.AppKey)
	assert.Empty(t, info.CanonicalURL)
}

func TestExtract_Empty(t *testing.T) {
	info, err := Extract("", "https://shop.example.com")
	require.NoError(t, err)
	assert.Empty(t, info.Title)
	assert.Empty(t, info.ProductID)
}
