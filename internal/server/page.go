package server

import (
	"context"
	"io"

	"github.com/a-h/templ"
	"github.com/conneroisu/contactform/internal/form"
)

const (
	pageTitle         = "Contact Us"
	statusPlaceholder = "Status will appear here"
	buttonIdle        = "Submit"
	buttonSending     = "Sending..."
)

// Page renders the contact form for snap.
func Page(snap form.Snapshot) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &htmlWriter{w: w}

		p.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		p.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		p.raw(`<title>`)
		p.text(pageTitle)
		p.raw(`</title><style>`)
		p.raw(pageStyle)
		p.raw(`</style></head><body><main class="card"><h1>`)
		p.text(pageTitle)
		p.raw(`</h1>`)

		p.raw(`<form id="contact-form" method="post" action="/" novalidate>`)
		for _, field := range form.Fields {
			renderField(p, field, snap.Data.Get(field), snap.Errors.Get(field))
		}

		p.raw(`<button type="submit" id="submit"`)
		label := buttonIdle
		if snap.Sending {
			p.raw(` disabled`)
			label = buttonSending
		}
		p.raw(`>`)
		p.text(label)
		p.raw(`</button>`)

		p.raw(`<input id="status" name="status" readonly placeholder="`)
		p.text(statusPlaceholder)
		p.raw(`" value="`)
		p.text(string(snap.Status))
		p.raw(`">`)
		p.raw(`</form></main><script>`)
		p.raw(pageScript)
		p.raw(`</script></body></html>`)

		return p.err
	})
}

func renderField(p *htmlWriter, field form.Field, value, errMsg string) {
	name := string(field)

	p.raw(`<div class="field"><label for="`)
	p.text(name)
	p.raw(`">`)
	p.text(field.Label())
	p.raw(`</label>`)

	if field == form.FieldMessage {
		p.raw(`<textarea id="message" name="message" rows="4" placeholder="`)
		p.text(field.Placeholder())
		p.raw(`">`)
		p.text(value)
		p.raw(`</textarea>`)
	} else {
		inputType := "text"
		switch field {
		case form.FieldEmail:
			inputType = "email"
		case form.FieldPhone:
			inputType = "tel"
		}
		p.raw(`<input id="`)
		p.text(name)
		p.raw(`" name="`)
		p.text(name)
		p.raw(`" type="`)
		p.raw(inputType)
		p.raw(`" placeholder="`)
		p.text(field.Placeholder())
		p.raw(`" value="`)
		p.text(value)
		p.raw(`">`)
	}

	p.raw(`<p class="error" id="`)
	p.text(name)
	p.raw(`-error"`)
	if errMsg == "" {
		p.raw(` hidden>`)
	} else {
		p.raw(`>`)
		p.text(errMsg)
	}
	p.raw(`</p></div>`)
}

// htmlWriter keeps the first write error so rendering code can stay linear.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (p *htmlWriter) raw(s string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s)
}

func (p *htmlWriter) text(s string) {
	p.raw(templ.EscapeString(s))
}

const pageStyle = `body{font-family:system-ui,sans-serif;background:#f9fafb;margin:0;min-height:100vh;display:flex;align-items:center;justify-content:center;padding:1rem}
.card{width:100%;max-width:48rem;background:#fff;border-radius:1rem;box-shadow:0 10px 15px rgba(0,0,0,.1);padding:2.5rem}
h1{text-align:center;margin-top:0}
.field{margin-bottom:1rem}
label{display:block;font-weight:600;margin-bottom:.25rem}
input,textarea{width:100%;box-sizing:border-box;border:1px solid #d1d5db;border-radius:.5rem;padding:.5rem}
.error{color:#ef4444;font-size:.875rem;margin:.25rem 0 0}
button{width:100%;background:#2563eb;color:#fff;border:0;border-radius:.5rem;padding:.5rem;cursor:pointer}
button:disabled{background:#93c5fd;cursor:default}
#status{margin-top:.5rem;background:#f9fafb;text-align:center}`

const pageScript = `(function(){
var fields=["name","email","phone","message"];
var form=document.getElementById("contact-form");
function post(path,body){return fetch(path,{method:"POST",headers:{"Content-Type":"application/json"},body:JSON.stringify(body)});}
function apply(s){
  fields.forEach(function(f){
    var el=document.getElementById(f);
    if(document.activeElement!==el&&el.value!==s.data[f]){el.value=s.data[f];}
    var err=document.getElementById(f+"-error");
    var msg=(s.errors&&s.errors[f])||"";
    err.textContent=msg;err.hidden=msg==="";
  });
  var b=document.getElementById("submit");
  b.disabled=s.sending;b.textContent=s.sending?"Sending...":"Submit";
  document.getElementById("status").value=s.status||"";
}
fields.forEach(function(f){
  document.getElementById(f).addEventListener("input",function(e){post("/api/field",{field:f,value:e.target.value});});
});
form.addEventListener("submit",function(e){e.preventDefault();post("/api/submit");});
var proto=location.protocol==="https:"?"wss:":"ws:";
var ws=new WebSocket(proto+"//"+location.host+"/ws");
ws.onmessage=function(ev){var m=JSON.parse(ev.data);if(m.content){apply(JSON.parse(m.content));}};
})();`
