package crawlertest

import "fmt"

// DetailPage renders a listing detail page carrying every anchor the field
// extractor reads. An empty apiID leaves out the favorite button, which is
// how a page that has not finished loading looks.
func DetailPage(apiID string) string {
	button := `<li class="dropdown favorite-button">Save</li>`
	if apiID != "" {
		button = fmt.Sprintf(`<li class="dropdown favorite-button js-favoriteButtonView" data-spu="%s">Save</li>`, apiID)
	}
	return `<!DOCTYPE html>
<html>
<head>
<meta property="homeaway:location:latitude" content="41.9270">
<meta property="homeaway:location:longitude" content="-73.9974">
</head>
<body>
<ul class="nav">` + button + `</ul>
<nav><a class="js-breadcrumbLink" href="/kingston"> Kingston </a></nav>
<h1><span class="listing-headline-text"> Riverside Cottage </span></h1>
<div class="rating" title="4.5 out of 5">*****</div>
<div class="price-large">$150</div>
<dl>
<dt>Minimum Stay</dt>
<dd>2 nights</dd>
<dt>Sleeps</dt><dd>6</dd>
<dt>Bedrooms</dt>
<dd>3</dd>
<dt>Bathrooms</dt><dd>2</dd>
</dl>
<div id="propertyType">Property type</div>
<div><ul><li> House </li></ul></div>
<div><ul><li>Floor 2</li></ul></div>
<div>Floor Area:</div>
<div><ul><li>1200 sq. ft.</li></ul></div>
<div id="buildingtype">Building</div>
<div><ul><li> Detached </li></ul></div>
<ul class="amenities"><li>Internet</li><li>Washer</li></ul>
<div class="advertiser-date">Member since: 2012</div>
<p>Average response time: <strong>within a few hours</strong></p>
<p>Response rate: <strong>100%</strong></p>
<p>Calendar last updated: <strong>03/01/2024</strong></p>
<p>Max. occupancy: <span> 6 </span></p>
</body>
</html>`
}

// SearchPage renders a results page. A negative pageCount omits the marker.
func SearchPage(pageCount int, refs ...string) string {
	body := "<html><body>"
	if pageCount >= 0 {
		body += fmt.Sprintf(`<script>window.__STATE__ = {"results":{"pageCount":%d,"page":1}};</script>`, pageCount)
	}
	for i, ref := range refs {
		body += fmt.Sprintf(`<div class="hit" data-spu="hit-%d"><a href="%s">listing %d</a></div>`, i, ref, i)
	}
	return body + "</body></html>"
}

// ReviewJSON renders a review API response with n reviews and the given total.
func ReviewJSON(total, n int) string {
	body := `{"list":[`
	for i := 1; i <= n; i++ {
		if i > 1 {
			body += ","
		}
		body += fmt.Sprintf(`{"reviewer":{"nickname":"Guest %d"},"headline":"Stay %d","rating":%d,"arrivalDate":"2023-0%d-01","createdDate":"2023-0%d-15"}`,
			i, i, 5-(i%2), (i%9)+1, (i%9)+1)
	}
	return body + fmt.Sprintf(`],"pagingContext":{"totalResults":%d}}`, total)
}
